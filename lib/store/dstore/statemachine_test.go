package dstore

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/db/engines/maple"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = db.NewKey("profiles", "u1")

func newTestMachine(t *testing.T) *RecordStateMachine {
	t.Helper()
	fsm, ok := CreateStateMaschineFactory(func() db.RecordDB { return maple.NewMapleDB(nil) })(1, 1).(*RecordStateMachine)
	require.True(t, ok)
	return fsm
}

// update applies the commands as one batch of raft entries starting at index 1
func update(t *testing.T, fsm *RecordStateMachine, cmds ...[]byte) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i, cmd := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: cmd}
	}
	entries, err := fsm.Update(entries)
	require.NoError(t, err)

	results := make([]sm.Result, len(entries))
	for i, e := range entries {
		results[i] = e.Result
	}
	return results
}

func putCmd(t *testing.T, key db.Key, segments map[int64]cdt.Entry) []byte {
	t.Helper()
	cmd, err := internal.NewPutCommand(key, map[string]*cdt.Map{"u": cdt.NewMapFrom(segments)})
	require.NoError(t, err)
	return cmd.Serialize()
}

func opsCmd(t *testing.T, existing bool, key db.Key, ops ...cdt.Operation) []byte {
	t.Helper()
	newCmd := internal.NewOperateCommand
	if existing {
		newCmd = internal.NewOperateExistingCommand
	}
	cmd, err := newCmd(key, ops)
	require.NoError(t, err)
	return cmd.Serialize()
}

func decodeResults(t *testing.T, res sm.Result) []cdt.Result {
	t.Helper()
	var results []cdt.Result
	require.NoError(t, json.Unmarshal(res.Data, &results))
	return results
}

func TestUpdate(t *testing.T) {
	segments := map[int64]cdt.Entry{1: cdt.NewEntry(10), 2: cdt.NewEntry(20)}
	deleteCmd := (&internal.Command{Type: internal.CommandTDelete, Key: testKey}).Serialize()

	tests := []struct {
		name  string
		cmds  func(t *testing.T) [][]byte
		check func(t *testing.T, fsm *RecordStateMachine, results []sm.Result)
	}{
		{
			name: "empty command",
			cmds: func(t *testing.T) [][]byte { return [][]byte{nil} },
			check: func(t *testing.T, _ *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCInvalidOperation), results[0].Value)
			},
		},
		{
			name: "unknown command type",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{(&internal.Command{Type: 200, Key: testKey}).Serialize()}
			},
			check: func(t *testing.T, _ *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCInvalidOperation), results[0].Value)
			},
		},
		{
			name: "put then delete",
			cmds: func(t *testing.T) [][]byte { return [][]byte{putCmd(t, testKey, segments), deleteCmd} },
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCSuccess), results[0].Value)
				assert.Equal(t, uint64(store.RetCSuccess), results[1].Value)
				assert.False(t, fsm.database.Has(testKey))
				assert.Equal(t, uint64(2), fsm.database.WriteIdx())
			},
		},
		{
			name: "operate returns encoded results",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{
					putCmd(t, testKey, segments),
					opsCmd(t, false, testKey,
						cdt.RemoveByValueRange("u", 0, 15, cdt.ReturnKey, false),
						cdt.Put("u", 3, cdt.NewEntry(30)),
						cdt.Size("u"),
					),
				}
			},
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				require.Equal(t, uint64(store.RetCSuccess), results[1].Value)
				decoded := decodeResults(t, results[1])
				require.Len(t, decoded, 3)
				assert.Equal(t, cdt.OpTRemoveByValueRange, decoded[0].Op)
				assert.Equal(t, []int64{1}, decoded[0].Keys)
				assert.Equal(t, cdt.OpTSize, decoded[2].Op)
				assert.Equal(t, 2, decoded[2].Count)

				rec, ok := fsm.database.Get(testKey)
				require.True(t, ok)
				assert.Equal(t, 2, rec.Bin("u").Len())
			},
		},
		{
			name: "voided batch leaves the record unchanged",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{
					putCmd(t, testKey, segments),
					opsCmd(t, false, testKey,
						cdt.Put("u", 3, cdt.NewEntry(30)),
						cdt.Increment("u", cdt.TTLPath(9), 1),
					),
				}
			},
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCOpFailed), results[1].Value)
				assert.NotEmpty(t, results[1].Data)

				rec, ok := fsm.database.Get(testKey)
				require.True(t, ok)
				assert.Equal(t, 2, rec.Bin("u").Len())
				_, found := rec.Bin("u").Get(3)
				assert.False(t, found)
			},
		},
		{
			name: "operate existing on a missing record",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{opsCmd(t, true, testKey, cdt.Put("u", 3, cdt.NewEntry(30)))}
			},
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCRecordNotFound), results[0].Value)
				assert.False(t, fsm.database.Has(testKey))
			},
		},
		{
			name: "operate existing after delete",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{
					putCmd(t, testKey, segments),
					deleteCmd,
					opsCmd(t, true, testKey, cdt.RemoveByValueRange("u", 0, 15, cdt.ReturnNone, false)),
				}
			},
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				assert.Equal(t, uint64(store.RetCRecordNotFound), results[2].Value)
				assert.False(t, fsm.database.Has(testKey))
			},
		},
		{
			name: "operate existing on an existing record",
			cmds: func(t *testing.T) [][]byte {
				return [][]byte{
					putCmd(t, testKey, segments),
					opsCmd(t, true, testKey, cdt.RemoveByValueRange("u", 0, 15, cdt.ReturnCount, false)),
				}
			},
			check: func(t *testing.T, fsm *RecordStateMachine, results []sm.Result) {
				require.Equal(t, uint64(store.RetCSuccess), results[1].Value)
				decoded := decodeResults(t, results[1])
				require.Len(t, decoded, 1)
				assert.Equal(t, 1, decoded[0].Count)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsm := newTestMachine(t)
			cmds := tt.cmds(t)
			results := update(t, fsm, cmds...)
			require.Len(t, results, len(cmds))
			tt.check(t, fsm, results)
		})
	}
}

func TestLookup(t *testing.T) {
	fsm := newTestMachine(t)
	update(t, fsm, putCmd(t, testKey, map[int64]cdt.Entry{1: cdt.NewEntry(10), 2: cdt.NewEntry(20)}))
	missing := db.NewKey("profiles", "missing")

	tests := []struct {
		name     string
		query    interface{}
		wantCode store.RetCode // checked if the lookup fails
		check    func(t *testing.T, res interface{})
	}{
		{
			name:     "invalid query type",
			query:    "get",
			wantCode: store.RetCInternalError,
		},
		{
			name:  "get",
			query: internal.Query{Type: internal.QueryTGet, Key: testKey},
			check: func(t *testing.T, res interface{}) {
				qr := res.(internal.QueryResult)
				assert.True(t, qr.Ok)
				assert.Equal(t, 2, qr.Record.Bin("u").Len())
			},
		},
		{
			name:  "get missing",
			query: internal.Query{Type: internal.QueryTGet, Key: missing},
			check: func(t *testing.T, res interface{}) {
				assert.False(t, res.(internal.QueryResult).Ok)
			},
		},
		{
			name:  "has",
			query: internal.Query{Type: internal.QueryTHas, Key: testKey},
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, true, res)
			},
		},
		{
			name: "read-only operate",
			query: internal.Query{Type: internal.QueryTOperate, Key: testKey, Ops: []cdt.Operation{
				cdt.GetByValueRange("u", 0, 15, cdt.ReturnKey, false),
				cdt.Size("u"),
			}},
			check: func(t *testing.T, res interface{}) {
				results := res.([]cdt.Result)
				require.Len(t, results, 2)
				assert.Equal(t, []int64{1}, results[0].Keys)
				assert.Equal(t, 2, results[1].Count)
			},
		},
		{
			name: "write op is rejected",
			query: internal.Query{Type: internal.QueryTOperate, Key: testKey, Ops: []cdt.Operation{
				cdt.Size("u"),
				cdt.RemoveByKey("u", 1, cdt.ReturnNone),
			}},
			wantCode: store.RetCInvalidOperation,
		},
		{
			name: "write op is rejected in operate existing",
			query: internal.Query{Type: internal.QueryTOperateExisting, Key: testKey, Ops: []cdt.Operation{
				cdt.Clear("u"),
			}},
			wantCode: store.RetCInvalidOperation,
		},
		{
			name:  "read-only operate existing on a missing record",
			query: internal.Query{Type: internal.QueryTOperateExisting, Key: missing, Ops: []cdt.Operation{cdt.Size("u")}},
			check: func(t *testing.T, res interface{}) {
				qr := res.(internal.QueryResult)
				assert.False(t, qr.Ok)
				assert.Empty(t, qr.Results)
			},
		},
		{
			name:  "read-only operate existing",
			query: internal.Query{Type: internal.QueryTOperateExisting, Key: testKey, Ops: []cdt.Operation{cdt.Size("u")}},
			check: func(t *testing.T, res interface{}) {
				qr := res.(internal.QueryResult)
				assert.True(t, qr.Ok)
				require.Len(t, qr.Results, 1)
				assert.Equal(t, 2, qr.Results[0].Count)
			},
		},
		{
			name:  "scan",
			query: internal.Query{Type: internal.QueryTScan, Set: "profiles"},
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, []db.Key{testKey}, res)
			},
		},
		{
			name:     "unknown query",
			query:    internal.Query{Type: 200},
			wantCode: store.RetCInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := fsm.Lookup(tt.query)
			if tt.check == nil {
				require.Error(t, err)
				assert.True(t, store.HasCode(err, tt.wantCode), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, res)
		})
	}

	// read-only lookups never create or modify the record
	rec, ok := fsm.database.Get(testKey)
	require.True(t, ok)
	assert.Equal(t, 2, rec.Bin("u").Len())
	assert.False(t, fsm.database.Has(missing))
}
