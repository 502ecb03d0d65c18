package source

import (
	"context"
	"strings"
	"testing"
	"time"

	"Bt1QPlayer/config"
	"Bt1QPlayer/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func TestTemplateRemoteRequestURL(t *testing.T) {
	remote := NewTemplateRemote(model.SourceTidal, "/track/?id={id}&quality={quality}", "LOSSLESS")
	ep := model.EndpointCandidate{Name: "a", BaseURL: "https://mirror.example/", MaxQuality: "HI_RES_LOSSLESS"}

	got := remote.RequestURL(ep, "12 34", ep.MaxQuality)
	want := "https://mirror.example/track/?id=12+34&quality=HI_RES_LOSSLESS"
	if got != want {
		t.Errorf("RequestURL = %q, want %q", got, want)
	}
	if remote.FallbackQuality() != "LOSSLESS" {
		t.Errorf("FallbackQuality = %q", remote.FallbackQuality())
	}
}

func TestRegistryFromDefaults(t *testing.T) {
	r := NewRegistryFromConfig(config.DefaultEndpoints(), nil)

	for _, src := range []model.Source{model.SourceNetease, model.SourceTidal, model.SourceQobuz} {
		if _, ok := r.Remote(src); !ok {
			t.Errorf("expected remote for %s", src)
		}
	}
	if _, ok := r.Remote(model.SourceLocal); ok {
		t.Error("local source must not be registered as remote")
	}
	if r.Local() != nil {
		t.Error("expected no local source")
	}
}

func TestMinioLocalPresignsWithoutNetwork(t *testing.T) {
	client, err := minio.New("127.0.0.1:9", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio.New: %v", err)
	}

	local := NewMinioLocal(client, "bt1qfm", time.Hour)
	u, err := local.DirectURL(context.Background(), model.Track{ID: "audio/1.flac", Source: model.SourceLocal})
	if err != nil {
		t.Fatalf("DirectURL: %v", err)
	}
	if !strings.Contains(u, "/bt1qfm/audio/1.flac") || !strings.Contains(u, "X-Amz-Signature=") {
		t.Errorf("unexpected presigned url %q", u)
	}

	if _, err := local.DirectURL(context.Background(), model.Track{}); err == nil {
		t.Error("expected error for empty object name")
	}
}
