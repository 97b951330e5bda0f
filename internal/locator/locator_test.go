package locator

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/uid"
)

type memFinder []record.Record

func (m memFinder) find(match func(record.Record) bool) []record.Record {
	var out []record.Record
	for _, r := range m {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m memFinder) FindByUidPrefix(_ context.Context, prefix string, reg record.Registry) ([]record.Record, error) {
	return m.find(func(r record.Record) bool {
		return r.Registry == reg && strings.HasPrefix(string(r.UID), prefix)
	}), nil
}

func (m memFinder) FindByKey(_ context.Context, key string, reg record.Registry) ([]record.Record, error) {
	return m.find(func(r record.Record) bool { return r.Registry == reg && r.Key == key }), nil
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func rec(u, key string, reg record.Registry, at time.Duration, hash string) record.Record {
	return record.Record{
		UID:         uid.UID(u),
		Registry:    reg,
		Key:         key,
		ContentHash: hasher.ContentHash(hash),
		CreatedAt:   t0.Add(at),
	}
}

func TestDecomposeURL(t *testing.T) {
	cases := []struct {
		url, instance string
		reg           record.Registry
		uid           string
	}{
		{"https://lamin.ai/laminlabs/lamindata/transform/abcd1234efgh0000", "laminlabs/lamindata", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/laminlabs/lamindata/artifact/abcd1234efgh0000", "laminlabs/lamindata", record.Artifact, "abcd1234efgh0000"},
		{"https://lamin.ai/laminlabs/lamindata/collection/abcd1234efgh", "laminlabs/lamindata", record.Collection, "abcd1234efgh"},
		{"https://lamin.ai/transform/abcd1234efgh0000", "", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/a/b/extra/transform/abcd1234efgh0000?tab=runs", "a/b", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/a/b/transform/abcd1234efgh0000/runs", "a/b", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/laminlabs/artifact/transform/abcd1234efgh0000", "laminlabs/artifact", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/collection/lamindata/transform/abcd1234efgh0000", "collection/lamindata", record.Transform, "abcd1234efgh0000"},
		{"https://lamin.ai/transform/artifact/artifact/abcd1234efgh0000", "transform/artifact", record.Artifact, "abcd1234efgh0000"},
	}
	for _, tc := range cases {
		instance, reg, u, err := DecomposeURL(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.instance, instance, tc.url)
		assert.Equal(t, tc.reg, reg, tc.url)
		assert.Equal(t, tc.uid, u, tc.url)
	}
}

func TestDecomposeURLRejects(t *testing.T) {
	for _, raw := range []string{
		"https://lamin.ai/laminlabs/lamindata/run/abcd1234efgh0000",
		"https://lamin.ai/laminlabs/lamindata/transform",
		"https://lamin.ai/laminlabs/lamindata/transform/not-a-uid",
		"https://lamin.ai/laminlabs/transforms/abcd1234efgh0000",
	} {
		_, _, _, err := DecomposeURL(raw)
		require.Error(t, err, raw)
		assert.True(t, IsUnrecognizedURL(err), raw)
	}
}

func TestParseURL(t *testing.T) {
	ref, err := ParseURL("https://lamin.ai/acc/inst/transform/abcd1234efgh0000")
	require.NoError(t, err)
	assert.Equal(t, Ref{Registry: record.Transform, UIDPrefix: "abcd1234efgh0000", Instance: "acc/inst"}, ref)
	assert.True(t, IsURL("https://lamin.ai/x"))
	assert.False(t, IsURL("transform"))
}

func TestLocatePrefixPrefersNewest(t *testing.T) {
	finder := memFinder{
		rec("abcd1234efgh0000", "a.py", record.Transform, 0, "h1"),
		rec("abcd1234efgh0001", "a.py", record.Transform, time.Hour, "h2"),
		rec("abcd1234efgh0002", "a.py", record.Artifact, 2*time.Hour, "h3"),
	}
	got, err := New(finder).Locate(context.Background(), Ref{Registry: record.Transform, UIDPrefix: "abcd1234"})
	require.NoError(t, err)
	assert.Equal(t, uid.UID("abcd1234efgh0001"), got.UID)
}

func TestLocateKeyPrefersNewest(t *testing.T) {
	finder := memFinder{
		rec("abcd1234efgh0001", "a.py", record.Transform, time.Hour, "h2"),
		rec("abcd1234efgh0000", "a.py", record.Transform, 0, "h1"),
	}
	got, err := New(finder).Locate(context.Background(), Ref{Registry: record.Transform, Key: "a.py"})
	require.NoError(t, err)
	assert.Equal(t, uid.UID("abcd1234efgh0001"), got.UID)
}

func TestLocateWithContentSkipsEmpty(t *testing.T) {
	finder := memFinder{
		rec("abcd1234efgh0000", "a.py", record.Transform, 0, "h1"),
		rec("abcd1234efgh0001", "a.py", record.Transform, time.Hour, ""),
	}
	got, err := New(finder).Locate(context.Background(), Ref{Registry: record.Transform, Key: "a.py", WithContent: true})
	require.NoError(t, err)
	assert.Equal(t, uid.UID("abcd1234efgh0000"), got.UID)
}

func TestLocateNotFound(t *testing.T) {
	_, err := New(memFinder{}).Locate(context.Background(), Ref{Registry: record.Artifact, Key: "missing.csv"})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = New(memFinder{}).Locate(context.Background(), Ref{Registry: record.Artifact, UIDPrefix: "bad-prefix"})
	assert.True(t, IsNotFound(err))
}

func TestLocateEqualTimestampsAreAmbiguous(t *testing.T) {
	finder := memFinder{
		rec("abcd1234efgh0000", "a.py", record.Transform, time.Hour, "h1"),
		rec("wxyz1234efgh0000", "a.py", record.Transform, time.Hour, "h2"),
	}
	_, err := New(finder).Locate(context.Background(), Ref{Registry: record.Transform, Key: "a.py"})
	require.Error(t, err)
	assert.True(t, IsAmbiguous(err))

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, CodeAmbiguousKey, le.Code)
	assert.Len(t, le.Candidates, 2)
	assert.Contains(t, err.Error(), "wxyz1234efgh0000")
}

func TestLocateNeedsUIDOrKey(t *testing.T) {
	_, err := New(memFinder{}).Locate(context.Background(), Ref{Registry: record.Transform})
	assert.Error(t, err)
}
