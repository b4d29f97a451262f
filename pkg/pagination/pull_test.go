package pagination

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/ago-extract/internal/testutil"
	"github.com/Sternrassler/ago-extract/pkg/auth"
	"github.com/Sternrassler/ago-extract/pkg/client"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.New(client.DefaultConfig("ago-extract-test/1.0"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestPull_AgainstMockServer(t *testing.T) {
	mock := testutil.NewMockAGO()
	defer mock.Close()
	mock.SetFeatures(testutil.NewLicenseFeatures(250))

	c := newTestClient(t)
	a, err := auth.New(c, auth.Config{TokenURL: mock.TokenURL()})
	if err != nil {
		t.Fatal(err)
	}

	tok, err := a.GenerateToken(context.Background(), auth.Credential{Username: mock.Username, Password: mock.Password})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	cfg := testConfig()
	cfg.DateColumns = []string{"ISSUEDATE"}
	path := filepath.Join(t.TempDir(), "licenses.csv")

	result, err := Pull(context.Background(), c.NewFeatureQuery(mock.QueryURL(), tok.Value), path, cfg)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if result.Pages != 3 || result.Records != 250 {
		t.Errorf("result = %+v", result)
	}

	want := []string{"OBJECTID > -1", "OBJECTID > 100", "OBJECTID > 200", "OBJECTID > 250"}
	if got := mock.GetQueries(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("queries = %v, want %v", got, want)
	}
	if mock.GetTokenCount() != 1 {
		t.Errorf("token requests = %d, want 1", mock.GetTokenCount())
	}

	lines := readLines(t, path)
	if len(lines) != 251 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0] != "ISSUEDATE,LICENSENUM,OBJECTID" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "2020-01-01,L-00001,1" {
		t.Errorf("first row = %q", lines[1])
	}
	if lines[250] != "2020-09-06,L-00250,250" {
		t.Errorf("last row = %q", lines[250])
	}
}

func TestPull_InvalidTokenIsFatal(t *testing.T) {
	mock := testutil.NewMockAGO()
	defer mock.Close()
	mock.SetFeatures(testutil.NewLicenseFeatures(5))

	c := newTestClient(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	_, err := Pull(context.Background(), c.NewFeatureQuery(mock.QueryURL(), "expired"), path, testConfig())

	var missing *client.MissingDataError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want MissingDataError", err)
	}
	if missing.Service == nil || missing.Service.Code != 498 {
		t.Errorf("Service = %+v, want code 498", missing.Service)
	}
	if mock.GetQueryCount() != 1 {
		t.Errorf("queries = %d, want 1", mock.GetQueryCount())
	}
}
