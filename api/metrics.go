package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestsTotal counts served requests.
// Labels: route (matched gin route), code (HTTP status)
var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rfiflag",
	Name:      "api_requests_total",
	Help:      "HTTP requests served by the flagging API",
}, []string{"route", "code"})

func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
