package export

import (
	"database/sql"
)

const (
	mysqlCreateTableTmpl = "CREATE TABLE IF NOT EXISTS rfiflag (" +
		"`ID`           BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT," +
		"`RunID`        VARCHAR(36) NOT NULL," +
		"`Antenna1`     INTEGER," +
		"`Antenna2`     INTEGER," +
		"`Polarization` INTEGER," +
		"`TimeSteps`    INTEGER," +
		"`Channels`     INTEGER," +
		"`Flagged`      INTEGER," +
		"`Ratio`        DOUBLE," +
		"`Mask`         MEDIUMTEXT," +
		"`Created`      BIGINT," +
		"INDEX (`RunID`)" +
		");"
)

// NewMySQL returns a SQL exporter using MySQL column types. The insert is
// shared with SQLite.
func NewMySQL(db *sql.DB, runID string) *SQL {
	return &SQL{
		DB:         db,
		RunID:      runID,
		createTmpl: mysqlCreateTableTmpl,
		insertTmpl: sqlInsertRecordTmpl,
	}
}
