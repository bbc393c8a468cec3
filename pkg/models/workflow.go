// Package models defines the core domain models for workflow validation and healing.
package models

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// MainChannel is the default connection channel between node ports.
const MainChannel = "main"

// NoOpNodeType is the safe replacement type used when a forbidden node type is healed.
const NoOpNodeType = "n8n-nodes-base.noOp"

// triggerTypeMarkers identify entry-point node types. Trigger nodes legitimately
// have no inbound connection and are never treated as orphans.
var triggerTypeMarkers = []string{"trigger", "webhook", "cron", "start", "manual"}

// Workflow is the canonical in-memory representation of a workflow document
// as produced by the generation step and consumed by the target engine.
type Workflow struct {
	Name        string         `json:"name"                 validate:"required,min=1"`
	Nodes       []*Node        `json:"nodes"`
	Connections Connections    `json:"connections"`
	Settings    map[string]any `json:"settings"`
	StaticData  any            `json:"staticData,omitempty"`
	Active      bool           `json:"active"`
}

// Node is a typed unit of work in the graph. It is identified by a unique ID
// and addressed in connections by its Name.
type Node struct {
	ID          string            `json:"id"                    validate:"required,min=1"`
	Name        string            `json:"name"                  validate:"required,min=1"`
	Type        string            `json:"type"                  validate:"required"`
	TypeVersion int               `json:"typeVersion"`
	Position    Position          `json:"position"`
	Parameters  map[string]any    `json:"parameters"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// IsTrigger reports whether the node type marks it as a workflow entry point.
func (n *Node) IsTrigger() bool {
	t := strings.ToLower(n.Type)
	for _, marker := range triggerTypeMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}

	return false
}

// Position is a node's canvas coordinate pair. Documents arriving from the
// generation step may carry malformed positions, so decoding tolerates any
// shape and leaves the value empty for the structural validator to flag.
type Position []float64

func (p *Position) UnmarshalJSON(data []byte) error {
	var coords []float64

	err := json.Unmarshal(data, &coords)
	if err != nil {
		*p = nil

		return nil
	}

	*p = coords

	return nil
}

// Valid reports whether the position is exactly two finite numbers.
func (p Position) Valid() bool {
	if len(p) != 2 {
		return false
	}

	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

// Connection is a directed edge target: the node it points at, the channel of
// the target's input port, and the input index on that channel.
type Connection struct {
	Node  string `json:"node"  validate:"required"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// ChannelConnections groups a source node's outgoing edges by channel name
// ("main", "error", ...); the outer slice is indexed by output port.
type ChannelConnections map[string][][]*Connection

// Connections maps a source node name to its grouped outgoing edges.
type Connections map[string]ChannelConnections

// Edge is a flattened view of one directed connection, used by the graph
// validation passes and the healing strategies.
type Edge struct {
	Source      string
	Target      string
	Channel     string
	OutputIndex int
	InputIndex  int
}

// Edges flattens the connection structure into a deterministic edge list,
// ordered by source name, channel name, then output index.
func (c Connections) Edges() []Edge {
	sources := make([]string, 0, len(c))
	for source := range c {
		sources = append(sources, source)
	}

	sort.Strings(sources)

	var edges []Edge

	for _, source := range sources {
		channels := make([]string, 0, len(c[source]))
		for channel := range c[source] {
			channels = append(channels, channel)
		}

		sort.Strings(channels)

		for _, channel := range channels {
			for outputIndex, targets := range c[source][channel] {
				for _, target := range targets {
					if target == nil {
						continue
					}

					edges = append(edges, Edge{
						Source:      source,
						Target:      target.Node,
						Channel:     channel,
						OutputIndex: outputIndex,
						InputIndex:  target.Index,
					})
				}
			}
		}
	}

	return edges
}

// NodeByName returns the node addressed by the given connection-graph vertex key.
func (w *Workflow) NodeByName(name string) *Node {
	for _, node := range w.Nodes {
		if node != nil && node.Name == name {
			return node
		}
	}

	return nil
}

// Clone returns a deep copy of the workflow. Healing strategies operate on
// clones only, so the producer's document is never mutated in place. The copy
// is field-wise rather than a JSON round-trip: malformed documents can carry
// NaN or Inf positions, which must survive cloning so the structural findings
// against them can still be healed.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := &Workflow{
		Name:        w.Name,
		Connections: w.Connections.Clone(),
		Settings:    cloneAnyMap(w.Settings),
		StaticData:  cloneAny(w.StaticData),
		Active:      w.Active,
	}

	if w.Nodes != nil {
		clone.Nodes = make([]*Node, len(w.Nodes))
		for i, node := range w.Nodes {
			clone.Nodes[i] = node.Clone()
		}
	}

	return clone
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	clone := *n

	if n.Position != nil {
		clone.Position = make(Position, len(n.Position))
		copy(clone.Position, n.Position)
	}

	clone.Parameters = cloneAnyMap(n.Parameters)

	if n.Credentials != nil {
		clone.Credentials = make(map[string]string, len(n.Credentials))
		for key, value := range n.Credentials {
			clone.Credentials[key] = value
		}
	}

	return &clone
}

// Clone returns a deep copy of the connection structure.
func (c Connections) Clone() Connections {
	if c == nil {
		return nil
	}

	clone := make(Connections, len(c))

	for source, channels := range c {
		clonedChannels := make(ChannelConnections, len(channels))

		for channel, outputs := range channels {
			clonedOutputs := make([][]*Connection, len(outputs))

			for i, targets := range outputs {
				if targets == nil {
					continue
				}

				clonedTargets := make([]*Connection, len(targets))

				for j, target := range targets {
					if target != nil {
						edge := *target
						clonedTargets[j] = &edge
					}
				}

				clonedOutputs[i] = clonedTargets
			}

			clonedChannels[channel] = clonedOutputs
		}

		clone[source] = clonedChannels
	}

	return clone
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	clone := make(map[string]any, len(m))
	for key, value := range m {
		clone[key] = cloneAny(value)
	}

	return clone
}

func cloneAny(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return cloneAnyMap(v)
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = cloneAny(item)
		}

		return clone
	default:
		return v
	}
}
