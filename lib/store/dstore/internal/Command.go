package internal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPut             CommandType = iota // Create a record or overwrite bins.
	CommandTDelete                             // Delete a record.
	CommandTOperate                            // Apply map operations atomically.
	CommandTOperateExisting                    // Apply map operations atomically if the record exists.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTDelete:
		return "Delete"
	case CommandTOperate:
		return "Operate"
	case CommandTOperateExisting:
		return "OperateExisting"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTPut:
		return db.FeaturePut, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTOperate, CommandTOperateExisting:
		return db.FeatureOperate, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type    CommandType
	Key     db.Key
	Payload []byte // JSON encoded bins (Put) or operations (Operate), empty for Delete
}

// NewPutCommand creates a command that writes bins to the record key
func NewPutCommand(key db.Key, bins map[string]*cdt.Map) (Command, error) {
	payload, err := json.Marshal(bins)
	if err != nil {
		return Command{}, fmt.Errorf("encode bins: %w", err)
	}
	return Command{Type: CommandTPut, Key: key, Payload: payload}, nil
}

// NewOperateCommand creates a command that applies ops to the record key
func NewOperateCommand(key db.Key, ops []cdt.Operation) (Command, error) {
	return newOpsCommand(CommandTOperate, key, ops)
}

// NewOperateExistingCommand creates a command that applies ops to the record key,
// unless the record doesn't exist when the command is applied
func NewOperateExistingCommand(key db.Key, ops []cdt.Operation) (Command, error) {
	return newOpsCommand(CommandTOperateExisting, key, ops)
}

func newOpsCommand(t CommandType, key db.Key, ops []cdt.Operation) (Command, error) {
	payload, err := json.Marshal(ops)
	if err != nil {
		return Command{}, fmt.Errorf("encode operations: %w", err)
	}
	return Command{Type: t, Key: key, Payload: payload}, nil
}

// Bins decodes the payload of a Put command
func (command *Command) Bins() (map[string]*cdt.Map, error) {
	var bins map[string]*cdt.Map
	if err := json.Unmarshal(command.Payload, &bins); err != nil {
		return nil, fmt.Errorf("decode bins: %w", err)
	}
	return bins, nil
}

// Ops decodes the payload of an Operate or OperateExisting command
func (command *Command) Ops() ([]cdt.Operation, error) {
	var ops []cdt.Operation
	if err := json.Unmarshal(command.Payload, &ops); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return ops, nil
}

// headerSize is the fixed part of a serialized command: Type + SetLen + KeyLen
const headerSize = 1 + 4 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key.Set) + len(command.Key.UserKey) + len(command.Payload)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for set length (big endian),
// 4 bytes for user key length (big endian),
// N bytes for set, N bytes for user key,
// N bytes for the payload (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key.Set)))
	binary.BigEndian.PutUint32(result[5:9], uint32(len(command.Key.UserKey)))

	pos := headerSize
	pos += copy(result[pos:], command.Key.Set)
	pos += copy(result[pos:], command.Key.UserKey)
	copy(result[pos:], command.Payload)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	setLen := int(binary.BigEndian.Uint32(data[1:5]))
	keyLen := int(binary.BigEndian.Uint32(data[5:9]))

	if len(data) < headerSize+setLen+keyLen {
		return fmt.Errorf("data too short for key of length %d/%d", setLen, keyLen)
	}

	pos := headerSize
	command.Key.Set = string(data[pos : pos+setLen])
	pos += setLen
	command.Key.UserKey = string(data[pos : pos+keyLen])
	pos += keyLen

	if len(data) > pos {
		command.Payload = make([]byte, len(data)-pos)
		copy(command.Payload, data[pos:])
	} else {
		command.Payload = nil
	}

	return nil
}
