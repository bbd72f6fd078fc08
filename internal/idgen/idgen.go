package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out unique, increasing ids for stores that cannot
// auto-increment on their own.
type Generator interface {
	Next() int64
}

// Sequence counts up from 1.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// NewSequence returns a generator whose first id is start+1.
func NewSequence(start int64) *Sequence {
	return &Sequence{last: start}
}

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Snowflake produces time-ordered ids unique across nodes.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for the given node id (0-1023).
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

func (s *Snowflake) Next() int64 {
	return s.node.Generate().Int64()
}

// New picks a generator by strategy name.
func New(strategy string, nodeID int64) (Generator, error) {
	switch strategy {
	case "", "sequence":
		return NewSequence(0), nil
	case "snowflake":
		return NewSnowflake(nodeID)
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}
