package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"fileshelf/internal/repository"
	"fileshelf/internal/storage"
)

type mockFileRepo struct {
	records    map[string]repository.FileRecord
	listResult []repository.FileRecord
	listErr    error
	deleteErr  error
	probeErr   error
	deleted    []string
}

func newMockRepo(records ...repository.FileRecord) *mockFileRepo {
	m := &mockFileRepo{records: map[string]repository.FileRecord{}}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *mockFileRepo) Insert(ctx context.Context, record repository.NewFileRecord) (*repository.FileRecord, error) {
	return nil, errors.New("not used")
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockFileRepo) GetByID(ctx context.Context, id string) (*repository.FileRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (m *mockFileRepo) List(ctx context.Context) ([]repository.FileRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockFileRepo) Probe(ctx context.Context) error {
	return m.probeErr
}

type mockStore struct {
	objects   map[string][]byte
	deleteErr error
	probeErr  error
	calls     []string
}

func newMockStore() *mockStore {
	return &mockStore{objects: map[string][]byte{}}
}

func (s *mockStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *mockStore) Delete(ctx context.Context, key string) error {
	s.calls = append(s.calls, "delete:"+key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *mockStore) PublicURL(key string) string { return "http://cdn/" + key }

func (s *mockStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *mockStore) Probe(ctx context.Context) error { return s.probeErr }

var sample = repository.FileRecord{ID: "11111111-1111-1111-1111-111111111111", Name: "a b.txt", FilePath: "1_abc123_a_b.txt"}

func TestFileService_ListFiles_DelegatesToRepo(t *testing.T) {
	repo := newMockRepo()
	repo.listResult = []repository.FileRecord{sample}
	svc := NewFileService(repo, newMockStore(), nil)

	records, err := svc.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles returned error: %v", err)
	}
	if len(records) != 1 || records[0].ID != sample.ID {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestFileService_OpenFile(t *testing.T) {
	store := newMockStore()
	store.objects[sample.FilePath] = []byte("hello")
	svc := NewFileService(newMockRepo(sample), store, nil)

	rec, body, err := svc.OpenFile(context.Background(), sample.ID)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if rec.Name != sample.Name || string(data) != "hello" {
		t.Fatalf("unexpected result: %+v %q", rec, data)
	}

	if _, _, err := svc.OpenFile(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileService_DeleteRecord_ObjectThenRow(t *testing.T) {
	repo := newMockRepo(sample)
	store := newMockStore()
	store.objects[sample.FilePath] = []byte("x")
	svc := NewFileService(repo, store, nil)

	if err := svc.DeleteRecord(context.Background(), sample); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, ok := store.objects[sample.FilePath]; ok {
		t.Fatal("object should be removed")
	}
	if _, ok := repo.records[sample.ID]; ok {
		t.Fatal("row should be removed")
	}

	// 第二次删除：对象和记录都已不存在，仍然成功并再次确认
	if err := svc.DeleteRecord(context.Background(), sample); err != nil {
		t.Fatalf("second delete should succeed: %v", err)
	}
	if len(store.calls) != 2 {
		t.Fatalf("expected object delete to run twice, got %v", store.calls)
	}
}

func TestFileService_DeleteRecord_ObjectFailureKeepsRow(t *testing.T) {
	repo := newMockRepo(sample)
	store := newMockStore()
	store.deleteErr = errors.New("network down")
	svc := NewFileService(repo, store, nil)

	if err := svc.DeleteRecord(context.Background(), sample); err == nil {
		t.Fatal("expected error when object delete fails")
	}
	if _, ok := repo.records[sample.ID]; !ok {
		t.Fatal("row must stay when the object could not be removed")
	}
}

func TestFileService_DeleteRecord_RowError(t *testing.T) {
	repo := newMockRepo(sample)
	repo.deleteErr = errors.New("db down")
	svc := NewFileService(repo, newMockStore(), nil)

	if err := svc.DeleteRecord(context.Background(), sample); err == nil {
		t.Fatal("expected row delete error")
	}
}

func TestFileService_DeleteFile_UnknownID(t *testing.T) {
	store := newMockStore()
	svc := NewFileService(newMockRepo(), store, nil)

	err := svc.DeleteFile(context.Background(), "nope")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.calls) != 0 {
		t.Fatal("store must not be touched for unknown ids")
	}
}

func TestFileService_Status(t *testing.T) {
	repo := newMockRepo()
	store := newMockStore()
	store.probeErr = storage.ErrBucketMissing
	svc := NewFileService(repo, store, nil)

	st := svc.Status(context.Background())
	if st.BucketReady || !st.TableReady {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.BucketError == "" {
		t.Fatal("expected bucket error message")
	}
}
