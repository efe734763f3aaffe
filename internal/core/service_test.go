package core

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestService(t *testing.T, fake *fakeERP, opts Options) *Service {
	t.Helper()
	svc, err := NewService(fake, testLocations(), nil, opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestServiceProcessFiles(t *testing.T) {
	fake := testCatalog()
	svc := newTestService(t, fake, Options{})

	ctx := ContextWithIPAddress(context.Background(), "10.0.0.7")
	ctx = ContextWithUserAgent(ctx, "curl/8")

	files := []NamedFile{
		{Name: "tiendas.TXT", Data: []byte(twoStoreFile)},
		{Name: "notas.csv", Data: []byte("whatever")},
		{Name: "malo.txt", Data: []byte("COD_BARRA;CANTIDAD;TIENDA\n999;1;BELLA VISTA\n")},
	}
	run, err := svc.ProcessFiles(ctx, files, ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessFiles() error = %v", err)
	}

	if len(run.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(run.Files))
	}
	if !reflect.DeepEqual(run.Ignored, []string{"notas.csv"}) {
		t.Errorf("Ignored = %v", run.Ignored)
	}
	if run.IPAddress != "10.0.0.7" || run.UserAgent != "curl/8" {
		t.Errorf("client = %q %q", run.IPAddress, run.UserAgent)
	}

	good, bad := run.Files[0], run.Files[1]
	if good.Transfer == nil || !good.Transfer.Success || len(good.Transfer.Transfers) != 2 {
		t.Errorf("good file transfer = %+v", good.Transfer)
	}
	if bad.Validation.Valid || bad.Transfer != nil {
		t.Errorf("bad file = valid %v, transfer %+v", bad.Validation.Valid, bad.Transfer)
	}
	if run.OK() {
		t.Error("run OK = true, want false")
	}
	if len(fake.pickings) != 2 {
		t.Errorf("pickings = %d, want 2 (bad file must not create any)", len(fake.pickings))
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}

	stored, err := svc.GetRun(context.Background(), run.ID)
	if err != nil || stored.ID != run.ID {
		t.Fatalf("GetRun() = %v, %v", stored, err)
	}
	list, err := svc.ListRuns(context.Background(), 10)
	if err != nil || len(list) != 1 || list[0].Transfers != 2 {
		t.Errorf("ListRuns() = %+v, %v", list, err)
	}
}

func TestServiceDryRun(t *testing.T) {
	fake := testCatalog()
	svc := newTestService(t, fake, Options{})

	run, err := svc.ProcessFiles(context.Background(), []NamedFile{{Name: "a.txt", Data: []byte(twoStoreFile)}}, ProcessOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ProcessFiles() error = %v", err)
	}
	if !run.DryRun || !run.OK() {
		t.Errorf("run = dry %v ok %v", run.DryRun, run.OK())
	}
	if run.Files[0].Transfer != nil || len(fake.pickings) != 0 {
		t.Error("dry run must not create transfers")
	}
}

func TestServiceNoFiles(t *testing.T) {
	svc := newTestService(t, testCatalog(), Options{})
	if _, err := svc.ProcessFiles(context.Background(), nil, ProcessOptions{}); !errors.Is(err, ErrNoFiles) {
		t.Errorf("error = %v, want ErrNoFiles", err)
	}
}

func TestServiceBusy(t *testing.T) {
	svc := newTestService(t, testCatalog(), Options{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})

	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer svc.limiter.Release()

	_, err := svc.ProcessFiles(context.Background(), []NamedFile{{Name: "a.txt", Data: []byte(twoStoreFile)}}, ProcessOptions{})
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("error = %v, want ErrTooManyRuns", err)
	}
	if st := svc.LimiterStatus(); st.Active != 1 || st.MaxConcurrent != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestServiceAccepts(t *testing.T) {
	svc := newTestService(t, testCatalog(), Options{AllowedExt: ".TXT"})
	tests := []struct {
		name string
		want bool
	}{
		{"a.txt", true},
		{"A.TXT", true},
		{"a.txt.bak", false},
		{"a.csv", false},
		{"txt", false},
	}
	for _, tt := range tests {
		if got := svc.Accepts(tt.name); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewServiceErrors(t *testing.T) {
	if _, err := NewService(testCatalog(), testLocations(), nil, Options{Encoding: "ebcdic"}); err == nil {
		t.Error("expected error for unsupported encoding")
	}
	if _, err := NewService(testCatalog(), nil, nil, Options{}); err == nil {
		t.Error("expected error for missing location tables")
	}
}

func TestServiceValidateDoesNotCreate(t *testing.T) {
	fake := testCatalog()
	svc := newTestService(t, fake, Options{})

	vr := svc.Validate(context.Background(), "a.txt", []byte(twoStoreFile))
	if !vr.Valid {
		t.Fatalf("Valid = false: %+v", vr.Errors)
	}
	if len(fake.pickings) != 0 {
		t.Error("Validate must not create transfers")
	}

	tr, err := svc.CreateTransfers(context.Background(), vr)
	if err != nil || !tr.Success || len(fake.pickings) != 2 {
		t.Errorf("CreateTransfers() = %+v, %v", tr, err)
	}
}

func TestServiceCreationSurvivesRequestCancel(t *testing.T) {
	fake := testCatalog()
	svc := newTestService(t, fake, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.onMove = cancel

	files := []NamedFile{{
		Name: "bella.txt",
		Data: []byte("COD_BARRA;CANTIDAD;TIENDA\n777;1;BELLA VISTA\n12345;2;BELLA VISTA\n"),
	}}
	run, err := svc.ProcessFiles(ctx, files, ProcessOptions{})
	if err != nil {
		t.Fatalf("ProcessFiles() error = %v", err)
	}

	tr := run.Files[0].Transfer
	if tr == nil || !tr.Success {
		t.Fatalf("transfer = %+v, want success", tr)
	}
	if len(fake.pickings) != 1 || len(fake.moves) != 2 {
		t.Errorf("pickings = %d, moves = %d, want 1 and 2", len(fake.pickings), len(fake.moves))
	}
	if len(tr.Transfers) != 1 || tr.Transfers[0].ItemsProcessed != 2 {
		t.Errorf("transfers = %+v, want both lines processed", tr.Transfers)
	}
}
