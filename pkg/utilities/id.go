package utilities

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeMu sync.Mutex
	nodes  = map[int64]*snowflake.Node{}
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewBehaviorID returns an ID for a behavior log entry. Snowflake IDs keep
// the log roughly time-ordered; if the node cannot be initialized it falls
// back to a KSUID string so an ID is always returned.
func NewBehaviorID(nodeID int64) string {
	node, err := snowflakeNode(nodeID)
	if err != nil {
		return NewKSUID()
	}
	return node.Generate().String()
}

// snowflake.Node carries the sequence counter, so nodes are reused per ID
// instead of being rebuilt on every call.
func snowflakeNode(nodeID int64) (*snowflake.Node, error) {
	nodeMu.Lock()
	defer nodeMu.Unlock()
	if n, ok := nodes[nodeID]; ok {
		return n, nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	nodes[nodeID] = n
	return n, nil
}
