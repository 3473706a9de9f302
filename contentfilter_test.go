package contentfilter_test

import (
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/userrules"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/require"
)

// testLogger is the common logger for tests.
var testLogger = slogutil.NewDiscardLogger()

// decodeList decodes the list text and requires it to have no syntax errors.
func decodeList(tb testing.TB, list string) (res *filterlist.Result) {
	tb.Helper()

	d := filterlist.NewDecoder(&filterlist.DecoderConfig{
		Logger: testLogger,
	})

	res, err := d.Decode(strings.NewReader(list))
	require.NoError(tb, err)
	require.Empty(tb, res.Errors)

	return res
}

// newSnapshot builds a snapshot directly from the decoded list text.
func newSnapshot(tb testing.TB, list string, user []userrules.Rule) (s *contentfilter.Snapshot) {
	tb.Helper()

	return contentfilter.NewSnapshotFromResult(decodeList(tb, list), userrules.NewContainer(user))
}

// newEngine is a helper that returns the engine of a snapshot built from the
// list text.
func newEngine(tb testing.TB, list string, user ...userrules.Rule) (e *contentfilter.Engine) {
	tb.Helper()

	return newSnapshot(tb, list, user).Engine()
}

// alloc returns the heap and RSS memory sizes, in kibibytes.
func alloc(tb testing.TB) (heap, rss uint64) {
	tb.Helper()

	p, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(tb, err)

	mi, err := p.MemoryInfo()
	require.NoError(tb, err)

	ms := &runtime.MemStats{}
	runtime.ReadMemStats(ms)

	return ms.Alloc / 1024, mi.RSS / 1024
}
