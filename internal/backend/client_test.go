package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/request"
	"fluxmedia/internal/services"
	"fluxmedia/internal/testsupport"
)

func newClient(t *testing.T) (*backend.Client, *testsupport.Backend) {
	t.Helper()
	fake := testsupport.NewBackend(t)
	return backend.New(fake.URL()+"/", backend.WithUserAgent("flux/test")), fake
}

func TestDownloadPostsRequestAndReturnsPath(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteDownload, testsupport.Reply{Body: map[string]string{"path": "/srv/out/clip one.mp4"}})

	req, err := request.BuildDownload(request.DownloadFields{URL: "https://x/y", Format: "mkv", SubtitleLangs: "en,fr"})
	if err != nil {
		t.Fatalf("BuildDownload: %v", err)
	}
	ctx := services.WithRequestID(context.Background(), "req-123")
	resp, err := client.Download(ctx, req)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if resp.Path != "/srv/out/clip one.mp4" {
		t.Fatalf("expected path passed through unchanged, got %q", resp.Path)
	}

	recorded := fake.Requests(testsupport.RouteDownload)
	if len(recorded) != 1 {
		t.Fatalf("expected 1 download request, got %d", len(recorded))
	}
	if got := recorded[0].Header.Get(backend.RequestIDHeader); got != "req-123" {
		t.Fatalf("expected request id header, got %q", got)
	}
	if got := recorded[0].Header.Get("User-Agent"); got != "flux/test" {
		t.Fatalf("expected user agent, got %q", got)
	}
	if ct := recorded[0].Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var sent map[string]any
	recorded[0].Decode(t, &sent)
	if sent["url"] != "https://x/y" || sent["format"] != "mkv" || sent["quality"] != "best" {
		t.Fatalf("unexpected payload: %v", sent)
	}
	langs, ok := sent["subtitle_langs"].([]any)
	if !ok || len(langs) != 2 || langs[0] != "en" || langs[1] != "fr" {
		t.Fatalf("unexpected subtitle_langs: %v", sent["subtitle_langs"])
	}
}

func TestDownloadErrorCarriesDetail(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteDownload, testsupport.Detail(http.StatusBadRequest, "invalid url"))

	_, err := client.Download(context.Background(), request.DownloadRequest{URL: "nope", Format: request.FormatMP4, Quality: "best"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	var reqErr *backend.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if reqErr.Status != http.StatusBadRequest || reqErr.Detail != "invalid url" {
		t.Fatalf("unexpected request error: %#v", reqErr)
	}
	if msg := backend.Message(err, "Download failed"); msg != "invalid url" {
		t.Fatalf("expected detail verbatim, got %q", msg)
	}
}

func TestErrorDetailFallbacks(t *testing.T) {
	cases := []struct {
		name  string
		reply testsupport.Reply
		want  string
	}{
		{"missing detail", testsupport.Reply{Status: http.StatusInternalServerError, Body: map[string]string{}}, "Conversion failed"},
		{"empty detail", testsupport.Detail(http.StatusBadRequest, ""), "Conversion failed"},
		{"non json body", testsupport.Reply{Status: http.StatusBadGateway, Raw: "<html>bad gateway</html>", ContentType: "text/html"}, "Conversion failed"},
		{"structured detail", testsupport.Reply{Status: http.StatusUnprocessableEntity, Body: map[string]any{"detail": []map[string]string{{"msg": "field required"}}}}, `[{"msg":"field required"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, fake := newClient(t)
			fake.Script(testsupport.RouteConvert, tc.reply)
			_, err := client.Convert(context.Background(), request.ConvertRequest{InputPath: "/tmp/a.mp4", OutputFormat: "mp3"})
			if !errors.Is(err, services.ErrRequest) {
				t.Fatalf("expected ErrRequest, got %v", err)
			}
			if got := backend.Message(err, "Conversion failed"); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestConvertReturnsOutput(t *testing.T) {
	client, fake := newClient(t)
	resp, err := client.Convert(context.Background(), request.ConvertRequest{InputPath: "/tmp/a.mp4", OutputFormat: "mp4"})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if resp.Output != "/tmp/a.converted.mp4" {
		t.Fatalf("unexpected output %q", resp.Output)
	}
	var sent map[string]string
	fake.Requests(testsupport.RouteConvert)[0].Decode(t, &sent)
	if sent["input_path"] != "/tmp/a.mp4" || sent["output_format"] != "mp4" {
		t.Fatalf("unexpected convert payload: %v", sent)
	}
}

func TestMalformedSuccessIsTransportError(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteDownload,
		testsupport.Reply{Raw: "not json"},
		testsupport.Reply{Body: map[string]string{"other": "x"}},
	)
	req := request.DownloadRequest{URL: "https://x/y", Format: request.FormatMP4, Quality: "best"}

	for i := 0; i < 2; i++ {
		_, err := client.Download(context.Background(), req)
		if !errors.Is(err, services.ErrTransport) {
			t.Fatalf("attempt %d: expected ErrTransport, got %v", i, err)
		}
	}
}

func TestUnreachableHostIsTransportError(t *testing.T) {
	fake := testsupport.NewBackend(t)
	url := fake.URL()
	fake.Server.Close()

	client := backend.New(url)
	_, err := client.Download(context.Background(), request.DownloadRequest{URL: "https://x/y"})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var trErr *backend.TransportError
	if !errors.As(err, &trErr) || trErr.Op != "download" {
		t.Fatalf("expected download TransportError, got %#v", err)
	}
	if msg := backend.Message(err, "Download failed"); msg == "Download failed" || msg == "" {
		t.Fatalf("expected transport description, got %q", msg)
	}
}

func TestSameOriginClientFailsAsTransportError(t *testing.T) {
	client := backend.New("")
	if _, err := client.History(context.Background()); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected ErrTransport for relative url, got %v", err)
	}
	if got := client.FileURL("/a b"); got != "/api/file?path=%2Fa+b" {
		t.Fatalf("unexpected relative file url %q", got)
	}
}

func TestHistoryDecodesItems(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteHistory,
		testsupport.HistoryItems(
			map[string]any{"_id": "1", "url": "https://x/y", "format": "mp4", "output_hint": "/tmp/a.mp4"},
			map[string]any{"_id": "2", "url": "https://x/z", "format": "mp3"},
		),
		testsupport.Reply{Raw: `{"items": null}`},
	)

	items, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "1" || items[0].OutputHint != "/tmp/a.mp4" {
		t.Fatalf("unexpected first entry: %#v", items[0])
	}
	if items[1].OutputHint != "" {
		t.Fatalf("expected no output hint, got %q", items[1].OutputHint)
	}

	items, err = client.History(context.Background())
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list for null items, got %#v", items)
	}
}

func TestHistoryAcceptsNumericIDs(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{
		Raw: `{"items": [{"_id": 42, "url": "https://x/y", "format": "mp4"}, {"_id": null, "url": "https://x/z", "format": "mp3"}]}`,
	})

	items, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "42" {
		t.Fatalf("expected numeric id as text, got %q", items[0].ID)
	}
	if items[1].ID != "" {
		t.Fatalf("expected null id to decode empty, got %q", items[1].ID)
	}
}

func TestHistoryNonOKIsError(t *testing.T) {
	client, fake := newClient(t)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{Status: http.StatusServiceUnavailable, Raw: ""})
	if _, err := client.History(context.Background()); !errors.Is(err, services.ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
}

func TestFileURLEscapesPath(t *testing.T) {
	client := backend.New("http://media.local:8000/")
	got := client.FileURL("/srv/out/a&b=c?.mp4")
	want := "http://media.local:8000/api/file?path=%2Fsrv%2Fout%2Fa%26b%3Dc%3F.mp4"
	if got != want {
		t.Fatalf("FileURL = %q, want %q", got, want)
	}
}

func TestFetchStreamsArtifact(t *testing.T) {
	client, _ := newClient(t)
	artifact := filepath.Join(t.TempDir(), "clip.mp4")
	content := testsupport.WriteArtifact(t, artifact, 4096)

	body, size, err := client.Fetch(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	defer body.Close()
	if size != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), size)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != string(content) {
		t.Fatal("fetched content differs from artifact")
	}

	_, _, err = client.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	var reqErr *backend.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != http.StatusNotFound || !strings.Contains(reqErr.Detail, "not found") {
		t.Fatalf("expected 404 RequestError, got %v", err)
	}

	if _, _, err := client.Fetch(context.Background(), "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank artifact, got %v", err)
	}
}
