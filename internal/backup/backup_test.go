package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	objects map[string]string
	fail    bool
}

func (m *memSink) Put(_ context.Context, name string, data []byte) error {
	if m.fail {
		return errors.New("unreachable")
	}
	if m.objects == nil {
		m.objects = make(map[string]string)
	}
	m.objects[name] = string(data)
	return nil
}

func (m *memSink) String() string { return "mem" }

func newTestManager(t *testing.T, sinks ...Sink) (*Manager, string) {
	t.Helper()
	data := t.TempDir()
	m := NewManager(filepath.Join(data, "backups"), nil, sinks...)
	m.Now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }
	return m, data
}

func TestBackup_CopiesAndManifest(t *testing.T) {
	sink := &memSink{}
	m, data := newTestManager(t, sink)
	stations := filepath.Join(data, "stations.json")
	require.NoError(t, os.WriteFile(stations, []byte(`[]`), 0o644))

	man, err := m.Backup(context.Background(), stations, filepath.Join(data, "etat_station.json"))
	require.NoError(t, err)

	require.Len(t, man.Entries, 1, "missing sources are skipped")
	assert.Equal(t, "stations.json.bak.20240301_083000", man.Entries[0].Name)
	assert.Equal(t, int64(2), man.Entries[0].Size)
	assert.Equal(t, "MANIFEST_20240301_083000.sha256", man.File)

	copyData, err := os.ReadFile(filepath.Join(m.Dir, man.Entries[0].Name))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(copyData))

	f, err := os.Open(filepath.Join(m.Dir, man.File))
	require.NoError(t, err)
	defer f.Close()
	sums, err := parseChecksumFile(f)
	require.NoError(t, err)
	assert.Equal(t, man.Entries[0].SHA256, sums[man.Entries[0].Name])

	assert.Equal(t, []string{"mem"}, man.Uploaded)
	assert.Equal(t, "[]", sink.objects["stations.json.bak.20240301_083000"])
	assert.Contains(t, sink.objects, man.File)
}

func TestBackup_SinkFailureKeepsLocalCopy(t *testing.T) {
	m, data := newTestManager(t, &memSink{fail: true})
	src := filepath.Join(data, "stations.json")
	require.NoError(t, os.WriteFile(src, []byte(`[]`), 0o644))

	man, err := m.Backup(context.Background(), src)
	require.Error(t, err)
	require.NotNil(t, man)
	assert.Empty(t, man.Uploaded)
	assert.FileExists(t, filepath.Join(m.Dir, man.Entries[0].Name))
}

func TestVerify(t *testing.T) {
	m, data := newTestManager(t)
	src := filepath.Join(data, "stations.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"id":"x"}]`), 0o644))
	man, err := m.Backup(context.Background(), src)
	require.NoError(t, err)

	manifest := filepath.Join(m.Dir, man.File)
	bad, err := Verify(manifest)
	require.NoError(t, err)
	assert.Empty(t, bad)

	require.NoError(t, os.WriteFile(filepath.Join(m.Dir, man.Entries[0].Name), []byte(`tampered`), 0o644))
	bad, err = Verify(manifest)
	require.NoError(t, err)
	assert.Equal(t, []string{man.Entries[0].Name}, bad)
}

func TestParseChecksumFile(t *testing.T) {
	hash := strings.Repeat("a", 64)
	in := hash + "  stations.json.bak.1\n\nshort  x\n" + hash + " etat.json.bak.1\nlonely\n" +
		hash + " *types copy.json\n" + strings.Repeat("z", 64) + "  bogus.json\n"
	sums, err := parseChecksumFile(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"stations.json.bak.1": hash,
		"etat.json.bak.1":     hash,
		"types copy.json":     hash,
	}, sums)
}

type fakePutter struct {
	keys   []string
	bodies []string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.keys = append(f.keys, *in.Bucket+"/"+*in.Key+" "+*in.ContentType)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	fp := &fakePutter{}
	sink := &S3Sink{client: fp, bucket: "stations", prefix: "nightly"}

	require.NoError(t, sink.Put(context.Background(), "stations.json.bak.20240301_083000", []byte(`[]`)))
	require.NoError(t, sink.Put(context.Background(), "MANIFEST_20240301_083000.sha256", []byte(`x`)))

	assert.Equal(t, []string{
		"stations/nightly/stations.json.bak.20240301_083000 application/json",
		"stations/nightly/MANIFEST_20240301_083000.sha256 text/plain",
	}, fp.keys)
	assert.Equal(t, "[]", fp.bodies[0])
	assert.Equal(t, "s3://stations/nightly", sink.String())
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Config{})
	assert.Error(t, err)
}
