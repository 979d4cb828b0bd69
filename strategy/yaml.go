package strategy

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hb9tf/rfiflag/action"
	"github.com/hb9tf/rfiflag/actions"
	"github.com/hb9tf/rfiflag/pipeline"
)

// FormatVersion is written to and required from every strategy document.
const FormatVersion = 1

var (
	// ErrUnknownKind is returned for an action kind without a registered constructor.
	ErrUnknownKind = errors.New("strategy: unknown action kind")
	// ErrUnknownParameter is returned for a parameter the action does not have.
	ErrUnknownParameter = errors.New("strategy: unknown parameter")
	// ErrVersion is returned for documents written in another format version.
	ErrVersion = errors.New("strategy: unsupported format version")
)

// Document is the on-disk form of a strategy.
type Document struct {
	Version  int  `yaml:"version"`
	Strategy Node `yaml:"strategy"`
}

// Node is one action. Params are decoded into the exported fields of the
// action created for Kind, over its defaults. Description names sequences and
// is informational for every other kind.
type Node struct {
	Kind        action.Kind `yaml:"kind"`
	Description string      `yaml:"description,omitempty"`
	Params      yaml.Node   `yaml:"params,omitempty"`
	Children    []Node      `yaml:"children,omitempty"`
}

var (
	registryMu sync.RWMutex
	registry   = map[action.Kind]func() action.Action{
		action.KindSequence:                func() action.Action { return &action.Sequence{} },
		action.KindForEachBaseline:         func() action.Action { return &pipeline.ForEachBaseline{Selection: pipeline.SelectAll} },
		action.KindForEachPolarization:     func() action.Action { return &actions.ForEachPolarization{} },
		action.KindForEachComplexComponent: func() action.Action { return actions.NewForEachComplexComponent(actions.ComponentAmplitude) },
		action.KindIterationBlock:          func() action.Action { return actions.NewIterationBlock(defaultIterations, defaultSensitivityStart) },
		action.KindChangeResolution:        func() action.Action { return actions.NewChangeResolution(defaultTimeReduction, 1) },
		action.KindCutArea:                 func() action.Action { return &actions.CutArea{} },
		action.KindCombineFlagResults:      func() action.Action { return &actions.CombineFlagResults{} },
		action.KindSumThreshold:            func() action.Action { return actions.NewSumThreshold() },
		action.KindStatisticalFlag:         func() action.Action { return actions.NewStatisticalFlag() },
		action.KindSlidingWindowFit:        func() action.Action { return actions.NewSlidingWindowFit() },
		action.KindSetFlagging:             func() action.Action { return &actions.SetFlagging{Mode: actions.FlagNone} },
		action.KindSetImage:                func() action.Action { return &actions.SetImage{Mode: actions.ImageZeroRevised} },
		action.KindTimeProfile:             func() action.Action { return &actions.TimeProfile{Mode: actions.ProfileStore} },
	}
)

// Register adds or replaces the constructor of kind. The constructor returns
// the action with its default parameters.
func Register(kind action.Kind, newAction func() action.Action) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = newAction
}

// Kinds lists the registered kinds in order.
func Kinds() []action.Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]action.Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func lookup(kind action.Kind) (func() action.Action, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// Load parses a strategy document.
func Load(data []byte) (action.Action, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse strategy YAML: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("version %d, want %d: %w", doc.Version, FormatVersion, ErrVersion)
	}
	return Decode(&doc.Strategy)
}

func LoadFile(path string) (action.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read strategy %q: %w", path, err)
	}
	root, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("unable to load strategy %q: %w", path, err)
	}
	return root, nil
}

// Save serializes the tree rooted at root.
func Save(root action.Action) ([]byte, error) {
	n, err := Encode(root)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(&Document{Version: FormatVersion, Strategy: n})
}

func SaveFile(root action.Action, path string) error {
	data, err := Save(root)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write strategy %q: %w", path, err)
	}
	return nil
}

// Decode builds the action tree described by n.
func Decode(n *Node) (action.Action, error) {
	return decode(n, action.Path{})
}

func decode(n *Node, p action.Path) (action.Action, error) {
	newAction, ok := lookup(n.Kind)
	if !ok {
		return nil, fmt.Errorf("at %v: %q: %w", p, n.Kind, ErrUnknownKind)
	}
	a := newAction()

	if n.Params.Kind != 0 {
		if err := checkParams(&n.Params, a); err != nil {
			return nil, fmt.Errorf("at %v: %s: %w", p, n.Kind, err)
		}
		if err := n.Params.Decode(a); err != nil {
			return nil, fmt.Errorf("at %v: unable to decode %s parameters: %w", p, n.Kind, err)
		}
	}
	if seq, ok := a.(*action.Sequence); ok && n.Description != "" {
		seq.Name = n.Description
	}

	if len(n.Children) == 0 {
		return a, nil
	}
	c, ok := a.(action.Container)
	if !ok {
		return nil, fmt.Errorf("at %v: %s has children: %w", p, n.Kind, action.ErrNotContainer)
	}
	for i := range n.Children {
		child, err := decode(&n.Children[i], append(append(action.Path{}, p...), i))
		if err != nil {
			return nil, err
		}
		c.Add(child)
	}
	return a, nil
}

// checkParams rejects keys that match no yaml field of a.
func checkParams(params *yaml.Node, a action.Action) error {
	if params.Kind != yaml.MappingNode {
		return fmt.Errorf("parameters must be a mapping, got %s", params.ShortTag())
	}
	known := paramNames(reflect.TypeOf(a))
	for i := 0; i+1 < len(params.Content); i += 2 {
		key := params.Content[i].Value
		if !known[key] {
			return fmt.Errorf("%q: %w", key, ErrUnknownParameter)
		}
	}
	return nil
}

func paramNames(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := map[string]bool{}
	if t.Kind() != reflect.Struct {
		return names
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(f.Name)
		}
		names[name] = true
	}
	return names
}

// Encode converts the tree rooted at a into its document form.
func Encode(a action.Action) (Node, error) {
	return encode(a, action.Path{})
}

func encode(a action.Action, p action.Path) (Node, error) {
	if _, ok := lookup(a.Kind()); !ok {
		return Node{}, fmt.Errorf("at %v: %q: %w", p, a.Kind(), ErrUnknownKind)
	}
	n := Node{Kind: a.Kind(), Description: a.Description()}
	if _, ok := a.(*action.Sequence); !ok {
		var params yaml.Node
		if err := params.Encode(a); err != nil {
			return Node{}, fmt.Errorf("at %v: unable to encode %s parameters: %w", p, a.Kind(), err)
		}
		if len(params.Content) > 0 {
			n.Params = params
		}
	}
	c, ok := a.(action.Container)
	if !ok {
		return n, nil
	}
	for i, child := range c.Children() {
		cn, err := encode(child, append(append(action.Path{}, p...), i))
		if err != nil {
			return Node{}, err
		}
		n.Children = append(n.Children, cn)
	}
	return n, nil
}
