package services

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// ProductIDs hands out time-ordered product ids that are unique per node,
// including for calls within the same millisecond.
type ProductIDs struct {
	node *snowflake.Node
}

func NewProductIDs(nodeID int64) (*ProductIDs, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %d: %w", nodeID, err)
	}
	return &ProductIDs{node: node}, nil
}

func (g *ProductIDs) Next() string {
	return g.node.Generate().String()
}
