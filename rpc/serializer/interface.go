package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dSeg/rpc/common"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Name returns the name the serializer is selected by (e.g. "gob")
	Name() string
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// factories of all serializers, by name
var factories = map[string]func() IRPCSerializer{
	"json": NewJSONSerializer,
	"gob":  NewGOBSerializer,
}

// ByName returns the serializer with the given name (case-insensitive).
// Client and server must use the same serializer.
func ByName(name string) (IRPCSerializer, error) {
	factory, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown serializer %q, must be one of json, gob", name)
	}
	return factory(), nil
}
