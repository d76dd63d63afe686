package maple

import (
	"testing"

	"github.com/ValentinKolb/dSeg/lib/db"
	dbtesting "github.com/ValentinKolb/dSeg/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunRecordDBTests(t, "MapleDB", func() db.RecordDB {
		return NewMapleDB(nil)
	})
}

func TestSingleShard(t *testing.T) {
	dbtesting.RunRecordDBTests(t, "MapleDB(1 shard)", func() db.RecordDB {
		return NewMapleDB(&DBOptions{NumShards: 1})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunRecordDBBenchmarks(b, "MapleDB", func() db.RecordDB {
		return NewMapleDB(nil)
	})
}
