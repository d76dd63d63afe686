package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dSeg/lib/cdt"
	"github.com/ValentinKolb/dSeg/lib/db"
	"github.com/ValentinKolb/dSeg/lib/jobs"
	"github.com/ValentinKolb/dSeg/lib/store"
	"github.com/ValentinKolb/dSeg/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

func testEntry(hour int64) cdt.Entry {
	e := cdt.NewEntry(hour)
	e.Meta["source"] = "crm"
	e.Meta["weight"] = 3
	return e
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	key := db.NewKey("profiles", "u1")
	bins := map[string]*cdt.Map{
		"u": cdt.NewMapFrom(map[int64]cdt.Entry{
			8001: testEntry(1200),
			8002: cdt.NewEntry(1300),
		}),
	}
	ops := []cdt.Operation{
		cdt.GetByKey("u", 8001, cdt.ReturnKeyValue),
		cdt.Put("u", 8003, testEntry(1400)),
		cdt.PutItems("u", map[int64]cdt.Entry{1: cdt.NewEntry(5), 2: testEntry(6)}),
		cdt.Increment("u", cdt.TTLPath(8001), 5),
		cdt.RemoveByValueRange("u", 0, 1250, cdt.ReturnCount, false),
		cdt.GetByValueRange("u", 0, 1250, cdt.ReturnKey, true),
		cdt.Size("u"),
	}
	submitted := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Handshake
		*common.NewVersionRequest(),

		// Put request
		*common.NewPutRequest(key, bins),

		// Get response
		*common.NewGetResponse(db.Record{Key: key, Bins: bins, Generation: 7}, true, nil),

		// Operate request and responses
		*common.NewOperateRequest(key, ops),
		*common.NewOperateResponse([]cdt.Result{
			{Op: cdt.OpTGetByKey, Bin: "u", Kind: cdt.ReturnKeyValue, Count: 1,
				Pairs: []cdt.Pair{{Key: 8001, Value: testEntry(1200)}}},
			{Op: cdt.OpTGetByValueRange, Bin: "u", Kind: cdt.ReturnKey, Count: 2, Keys: []int64{1, 2}},
			{Op: cdt.OpTIncrement, Bin: "u", Number: 1205},
		}, nil),
		*common.NewOperateUnorderedResponse(map[string]cdt.Result{
			"u": {Op: cdt.OpTSize, Bin: "u", Kind: cdt.ReturnCount, Count: 2},
		}, nil),

		// Scan response
		*common.NewScanResponse([]db.Key{key, db.NewKey("profiles", "u2")}, nil),

		// Jobs
		*common.NewJobSubmitRequest("profiles", ops[4:5]),
		*common.NewJobStatusResponse(jobs.JobInfo{
			ID:        "3b8e3c55-7a51-4b0c-9d3c-4a37b6a1b7e2",
			Namespace: "test",
			Set:       "profiles",
			Ops:       ops[4:5],
			Status:    jobs.StatusCompleted,
			Scanned:   10,
			Applied:   10,
			Submitted: submitted,
			Started:   submitted.Add(time.Second),
			Finished:  submitted.Add(2 * time.Second),
		}, nil),

		// Error response
		*common.NewErrorResponse("test error message"),
	}
}

// canonical returns the json representation used to compare messages
func canonical(t *testing.T, msg common.Message) string {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to encode message: %v", err)
	}
	return string(data)
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if want, got := canonical(t, msg), canonical(t, result); want != got {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %s\nResult:   %s", i, want, got)
				}
			}
		})
	}
}

// TestEntryMetadataSurvives checks that the metadata of entries is decoded as values, not raw json
func TestEntryMetadataSurvives(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			msg := common.NewPutRequest(db.NewKey("profiles", "u1"), map[string]*cdt.Map{
				"u": cdt.NewMapFrom(map[int64]cdt.Entry{42: testEntry(100)}),
			})

			data, err := serializer.Serialize(*msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			entry, ok := result.Bins["u"].Get(42)
			if !ok {
				t.Fatalf("Segment 42 missing after round trip")
			}
			if !entry.Equal(testEntry(100)) {
				t.Errorf("Entry mismatch: expected %s, got %s", testEntry(100), entry)
			}
			if v, ok := entry.Meta["weight"].(int64); !ok || v != 3 {
				t.Errorf("Metadata number should decode as int64(3), got %T(%v)", entry.Meta["weight"], entry.Meta["weight"])
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTRecOperateExisting; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestErrorsSurviveTransport tests that well known errors keep their identity on the client
func TestErrorsSurviveTransport(t *testing.T) {
	testCases := []struct {
		name  string
		err   error
		check func(err error) bool
	}{
		{
			name: "store error",
			err:  store.NewError(store.RetCOpFailed, "increment of missing segment 9"),
			check: func(err error) bool {
				var storeErr *store.Error
				return errors.As(err, &storeErr) && storeErr.Code == store.RetCOpFailed &&
					storeErr.Msg == "increment of missing segment 9"
			},
		},
		{
			name:  "wrapped job not found",
			err:   fmt.Errorf("status of job x: %w", jobs.ErrJobNotFound),
			check: func(err error) bool { return errors.Is(err, jobs.ErrJobNotFound) },
		},
		{
			name:  "job finished",
			err:   jobs.ErrJobFinished,
			check: func(err error) bool { return errors.Is(err, jobs.ErrJobFinished) },
		},
		{
			name:  "closed",
			err:   jobs.ErrClosed,
			check: func(err error) bool { return errors.Is(err, jobs.ErrClosed) },
		},
		{
			name:  "plain error",
			err:   errors.New("boom"),
			check: func(err error) bool { return err != nil && err.Error() == "boom" },
		},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				data, err := serializer.Serialize(*common.NewOperateResponse(nil, tc.err))
				if err != nil {
					t.Fatalf("Failed to serialize: %v", err)
				}
				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Fatalf("Failed to deserialize: %v", err)
				}

				if got := result.ResponseError(); !tc.check(got) {
					t.Errorf("Error lost its identity: sent %v, got %#v", tc.err, got)
				}
			})
		}
	}
}

// TestSuccessHasNoError tests that a successful response carries no error
func TestSuccessHasNoError(t *testing.T) {
	msg := common.NewHasResponse(true, nil)
	if err := msg.ResponseError(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

// TestByName tests the serializer lookup
func TestByName(t *testing.T) {
	for _, name := range []string{"json", "GOB", "Json"} {
		s, err := ByName(name)
		if err != nil {
			t.Errorf("ByName(%q) failed: %v", name, err)
			continue
		}
		if s.Name() == "" {
			t.Errorf("ByName(%q) returned a serializer without name", name)
		}
	}

	if _, err := ByName("binary"); err == nil {
		t.Error("Expected an error for an unknown serializer")
	}
}

// TestInvalidData tests how the serializers handle corrupt or invalid data
func TestInvalidData(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Empty data", data: []byte{}},
		{name: "Garbage", data: []byte{0xff, 0x01, 0x02}},
		{name: "Truncated", data: []byte(`{"msg_type":"put","key":{"set":"pro`)},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				var msg common.Message
				if err := serializer.Deserialize(tc.data, &msg); err == nil {
					t.Errorf("Expected error but got none")
				}
			})
		}
	}
}

// TestUnknownMessageTypeJSON tests that unknown type names are rejected
func TestUnknownMessageTypeJSON(t *testing.T) {
	var msg common.Message
	err := NewJSONSerializer().Deserialize([]byte(`{"msg_type":"kvSet"}`), &msg)
	if err == nil {
		t.Error("Expected an error for an unknown message type")
	}
}

// TestGOBRejectsNilBins tests that a nil segment map is reported instead of failing inside gob
func TestGOBRejectsNilBins(t *testing.T) {
	msg := common.NewPutRequest(db.NewKey("profiles", "u1"), map[string]*cdt.Map{"u": nil})
	if _, err := NewGOBSerializer().Serialize(*msg); err == nil {
		t.Error("Expected an error for a nil bin")
	}
}
