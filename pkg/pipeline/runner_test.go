package pipeline

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/matzehuels/qrsheet/pkg/cache"
	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/geometry"
	"github.com/matzehuels/qrsheet/pkg/page"
	"github.com/matzehuels/qrsheet/pkg/publish"
)

// smallGeometry holds four 50x50 tiles per 150x150 page.
var smallGeometry = geometry.Geometry{
	PageSize: geometry.Size{W: 150, H: 150},
	Margin:   10,
	HSpacing: 10,
	VSpacing: 10,
	TileSize: geometry.Size{W: 50, H: 50},
}

// countingEncoder renders blank tiles and counts calls.
type countingEncoder struct {
	mu     sync.Mutex
	calls  int
	failAt int
}

func (e *countingEncoder) Encode(_ context.Context, id int, size geometry.Size) (image.Image, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failAt != 0 && id == e.failAt {
		return nil, stderrors.New("encoder broke")
	}
	return imaging.New(size.W, size.H, color.Gray{Y: 40}), nil
}

func (e *countingEncoder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func smallOptions(t *testing.T, start, count int) Options {
	t.Helper()
	return Options{
		Start:     start,
		Count:     count,
		Geometry:  smallGeometry,
		NoCaption: true,
		OutputDir: t.TempDir(),
		Encoder:   &countingEncoder{},
	}
}

func quietRunner() *Runner {
	return NewRunner(nil, nil, nil)
}

func checkRanges(t *testing.T, recs []page.Record, start, count, perPage int) {
	t.Helper()
	next := start
	for i, r := range recs {
		if r.Index != i {
			t.Errorf("record %d has index %d", i, r.Index)
		}
		if r.FirstID != next {
			t.Errorf("record %d starts at %d, want %d", i, r.FirstID, next)
		}
		if i < len(recs)-1 && r.Count() != perPage {
			t.Errorf("non-final record %d holds %d ids, want %d", i, r.Count(), perPage)
		}
		next = r.LastID + 1
	}
	if next != start+count {
		t.Errorf("records end at %d, want %d", next-1, start+count-1)
	}
}

func TestExecuteSinglePartialPage(t *testing.T) {
	out := t.TempDir()
	opts := Options{Start: 100001, Count: 5, OutputDir: out}

	res, err := quietRunner().Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(res.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(res.Pages))
	}
	rec := res.Pages[0]
	if rec.FirstID != 100001 || rec.LastID != 100005 {
		t.Errorf("page range = %d-%d, want 100001-100005", rec.FirstID, rec.LastID)
	}
	if filepath.Base(rec.Path) != "qr_codes_100001_through_100005.pdf" {
		t.Errorf("page name = %s", filepath.Base(rec.Path))
	}
	if filepath.Dir(rec.Path) != filepath.Join(out, "pages") {
		t.Errorf("page dir = %s", filepath.Dir(rec.Path))
	}

	if res.OutputPath != filepath.Join(out, "qr_codes_100001_through_100005.pdf") {
		t.Errorf("OutputPath = %s", res.OutputPath)
	}
	if n, err := api.PageCountFile(res.OutputPath); err != nil || n != 1 {
		t.Errorf("merged document pages = %d, err %v", n, err)
	}
	if res.Stats.Tiles != 5 || res.Stats.Pages != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestExecuteMultiplePages(t *testing.T) {
	opts := smallOptions(t, 1, 10)

	res, err := quietRunner().Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(res.Pages))
	}
	checkRanges(t, res.Pages, 1, 10, 4)
	if res.Merge.PageCount != 3 {
		t.Errorf("merged page count = %d, want 3", res.Merge.PageCount)
	}
}

func TestExecuteExactMultiple(t *testing.T) {
	opts := smallOptions(t, 1, 8)

	res, err := quietRunner().Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Pages) != 2 {
		t.Errorf("got %d pages, want 2 (no trailing empty page)", len(res.Pages))
	}
}

func TestExecuteParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()

	seq := smallOptions(t, 500, 23)
	seqRes, err := quietRunner().Execute(ctx, seq)
	if err != nil {
		t.Fatalf("sequential Execute: %v", err)
	}

	par := smallOptions(t, 500, 23)
	par.Workers = 3
	var progress []int
	r := quietRunner()
	r.OnPage = func(_ page.Record, done, total int) {
		if total != 6 {
			t.Errorf("OnPage total = %d, want 6", total)
		}
		progress = append(progress, done)
	}
	parRes, err := r.Execute(ctx, par)
	if err != nil {
		t.Fatalf("parallel Execute: %v", err)
	}

	if len(parRes.Pages) != len(seqRes.Pages) {
		t.Fatalf("parallel pages = %d, sequential = %d", len(parRes.Pages), len(seqRes.Pages))
	}
	for i := range seqRes.Pages {
		s, p := seqRes.Pages[i], parRes.Pages[i]
		if s.FirstID != p.FirstID || s.LastID != p.LastID || filepath.Base(s.Path) != filepath.Base(p.Path) {
			t.Errorf("page %d differs: %+v vs %+v", i, s, p)
		}
	}
	checkRanges(t, parRes.Pages, 500, 23, 4)
	if parRes.Merge.PageCount != 6 {
		t.Errorf("merged page count = %d, want 6", parRes.Merge.PageCount)
	}
	if len(progress) != 6 || progress[5] != 6 {
		t.Errorf("progress callbacks = %v", progress)
	}
}

func TestExecuteZeroCount(t *testing.T) {
	opts := smallOptions(t, 1, 0)

	res, err := quietRunner().Execute(context.Background(), opts)
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Fatalf("Execute error = %v, want CONFIG_ERROR", err)
	}
	if res != nil {
		t.Error("failed run should not return a result")
	}
	if _, err := os.Stat(filepath.Join(opts.OutputDir, "qr_codes_1_through_0.pdf")); !os.IsNotExist(err) {
		t.Error("no merged document should be written")
	}
}

func TestExecuteDegenerateGeometry(t *testing.T) {
	enc := &countingEncoder{}
	opts := smallOptions(t, 1, 10)
	opts.Encoder = enc
	opts.Geometry.TileSize = geometry.Size{W: 200, H: 50}

	_, err := quietRunner().Execute(context.Background(), opts)
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Fatalf("Execute error = %v, want CONFIG_ERROR", err)
	}
	if enc.Calls() != 0 {
		t.Errorf("encoder called %d times before the geometry error", enc.Calls())
	}
}

func TestExecuteRenderFailure(t *testing.T) {
	for _, workers := range []int{1, 3} {
		opts := smallOptions(t, 1, 10)
		opts.Encoder = &countingEncoder{failAt: 6}
		opts.Workers = workers

		_, err := quietRunner().Execute(context.Background(), opts)
		var re *errors.RenderError
		if !stderrors.As(err, &re) || re.ID != 6 {
			t.Errorf("workers=%d: Execute error = %v, want RenderError for id 6", workers, err)
		}
		if _, err := os.Stat(opts.OutputPath()); !os.IsNotExist(err) {
			t.Errorf("workers=%d: failed run should not write a merged document", workers)
		}
	}
}

func TestExecuteResume(t *testing.T) {
	ctx := context.Background()
	opts := smallOptions(t, 1, 10)
	first, err := quietRunner().Execute(ctx, opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	// Everything is reused.
	enc := &countingEncoder{}
	again := smallOptions(t, 1, 10)
	again.OutputDir = opts.OutputDir
	again.Encoder = enc
	again.Resume = true
	res, err := quietRunner().Execute(ctx, again)
	if err != nil {
		t.Fatalf("resumed Execute: %v", err)
	}
	if enc.Calls() != 0 || res.Stats.ReusedPages != 3 {
		t.Errorf("encoder calls %d, reused %d; want 0 and 3", enc.Calls(), res.Stats.ReusedPages)
	}

	// A damaged page is rebuilt, the rest reused.
	if err := os.WriteFile(first.Pages[1].Path, []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	enc = &countingEncoder{}
	again.Encoder = enc
	res, err = quietRunner().Execute(ctx, again)
	if err != nil {
		t.Fatalf("repair Execute: %v", err)
	}
	if enc.Calls() != 4 {
		t.Errorf("encoder calls = %d, want 4 (one page)", enc.Calls())
	}
	if res.Stats.ReusedPages != 2 || res.Pages[1].Reused {
		t.Errorf("reused = %d, page 1 reused = %v", res.Stats.ReusedPages, res.Pages[1].Reused)
	}
	checkRanges(t, res.Pages, 1, 10, 4)
	if res.Merge.PageCount != 3 {
		t.Errorf("merged page count = %d, want 3", res.Merge.PageCount)
	}
}

func TestExecuteWithoutResumeRebuilds(t *testing.T) {
	ctx := context.Background()
	opts := smallOptions(t, 1, 5)
	if _, err := quietRunner().Execute(ctx, opts); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	enc := &countingEncoder{}
	again := smallOptions(t, 1, 5)
	again.OutputDir = opts.OutputDir
	again.Encoder = enc
	if _, err := quietRunner().Execute(ctx, again); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if enc.Calls() != 5 {
		t.Errorf("encoder calls = %d, want 5", enc.Calls())
	}
}

func TestExecuteLenientSkipsNothingOnCleanRun(t *testing.T) {
	opts := smallOptions(t, 1, 6)
	opts.Lenient = true
	res, err := quietRunner().Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.SkippedPages != 0 || res.Merge.PageCount != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestExecuteUsesTileCache(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	opts := smallOptions(t, 1, 6)
	if _, err := NewRunner(c, nil, nil).Execute(ctx, opts); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	enc := &countingEncoder{}
	again := smallOptions(t, 1, 6)
	again.Encoder = enc
	if _, err := NewRunner(c, nil, nil).Execute(ctx, again); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if enc.Calls() != 0 {
		t.Errorf("encoder calls = %d, want 0 with a warm cache", enc.Calls())
	}
}

type memUploader struct {
	objects map[string][]byte
}

func (m *memUploader) Upload(_ context.Context, bucket, object string, r io.Reader, _ int64, _ bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+object] = data
	return nil
}

func (m *memUploader) Stat(_ context.Context, bucket, object string) (publish.ObjectInfo, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return publish.ObjectInfo{}, os.ErrNotExist
	}
	return publish.ObjectInfo{Size: int64(len(data))}, nil
}

func (m *memUploader) Close() error { return nil }

func TestExecutePublish(t *testing.T) {
	up := &memUploader{objects: make(map[string][]byte)}
	r := quietRunner()
	r.Publisher = publish.New(publish.WithOpener(publish.SchemeGCS, func(context.Context) (publish.Uploader, error) {
		return up, nil
	}))

	opts := smallOptions(t, 1, 5)
	opts.Publish = "gs://labels/batches/"
	res, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Published == nil || res.Published.String() != "gs://labels/batches/qr_codes_1_through_5.pdf" {
		t.Fatalf("Published = %v", res.Published)
	}
	local, _ := os.ReadFile(res.OutputPath)
	if string(up.objects["labels/batches/qr_codes_1_through_5.pdf"]) != string(local) {
		t.Error("uploaded bytes differ from the merged document")
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietRunner().Execute(ctx, smallOptions(t, 1, 10))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Execute error = %v, want context.Canceled", err)
	}
}
