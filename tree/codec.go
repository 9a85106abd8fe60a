package tree

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Encode serializes the tree into the manifest format: indented JSON.
func Encode(node *Node) ([]byte, error) {
	data, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return nil, errors.WithMessage(err, "failed to marshal tree to JSON")
	}

	return data, nil
}

// Decode parses a manifest and checks that it describes a well formed tree rooted at a directory.
func Decode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, errors.WithMessage(err, "failed to unmarshal tree from JSON")
	}

	if err := node.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid manifest")
	}

	return &node, nil
}

// Digest returns the Keccak256 hash of an encoded manifest. It changes whenever the tree shape changes.
func Digest(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}
