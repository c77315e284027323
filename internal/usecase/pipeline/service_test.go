package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/cddm-gh/audio-sphere-switcher/errors"
	"github.com/cddm-gh/audio-sphere-switcher/internal/domain/entities"
	"github.com/cddm-gh/audio-sphere-switcher/internal/infrastructure/events"
)

type fakeOwnerStore struct {
	items        map[uuid.UUID]*entities.AudioItem
	attachRows   int64
	attachErr    error
	lastRequest  string
	lastFilename string
}

func newFakeOwnerStore() *fakeOwnerStore {
	return &fakeOwnerStore{items: make(map[uuid.UUID]*entities.AudioItem), attachRows: 1}
}

func (f *fakeOwnerStore) Create(_ context.Context, item *entities.AudioItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeOwnerStore) FindByID(_ context.Context, ownerID, id uuid.UUID) (*entities.AudioItem, error) {
	item, ok := f.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, nil
	}
	return item, nil
}

func (f *fakeOwnerStore) FindByFilename(_ context.Context, ownerID uuid.UUID, filename string) (*entities.AudioItem, error) {
	for _, item := range f.items {
		if item.OwnerID == ownerID && item.Filename == filename {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeOwnerStore) AttachRequestID(_ context.Context, _ uuid.UUID, filename, requestID string) (int64, error) {
	f.lastFilename = filename
	f.lastRequest = requestID
	return f.attachRows, f.attachErr
}

func (f *fakeOwnerStore) List(_ context.Context, ownerID uuid.UUID, _, _ int) ([]entities.AudioItem, int64, error) {
	var out []entities.AudioItem
	for _, item := range f.items {
		if item.OwnerID == ownerID {
			out = append(out, *item)
		}
	}
	return out, int64(len(out)), nil
}

type fakeSystemStore struct {
	items       map[uuid.UUID]*entities.AudioItem
	byRequestID map[string]*entities.AudioItem
	commits     int
	summaries   map[uuid.UUID]string
}

func newFakeSystemStore() *fakeSystemStore {
	return &fakeSystemStore{
		items:       make(map[uuid.UUID]*entities.AudioItem),
		byRequestID: make(map[string]*entities.AudioItem),
		summaries:   make(map[uuid.UUID]string),
	}
}

func (f *fakeSystemStore) add(item *entities.AudioItem) {
	f.items[item.ID] = item
	if item.ProviderRequestID != nil {
		f.byRequestID[*item.ProviderRequestID] = item
	}
}

func (f *fakeSystemStore) FindByID(_ context.Context, id uuid.UUID) (*entities.AudioItem, error) {
	return f.items[id], nil
}

func (f *fakeSystemStore) FindByRequestID(_ context.Context, requestID string) (*entities.AudioItem, error) {
	return f.byRequestID[requestID], nil
}

func (f *fakeSystemStore) CommitTranscription(_ context.Context, requestID, text string, _ []byte) (int64, error) {
	item, ok := f.byRequestID[requestID]
	if !ok {
		return 0, nil
	}
	f.commits++
	item.MarkTranscribed(text)
	return 1, nil
}

func (f *fakeSystemStore) UpdateSummary(_ context.Context, id uuid.UUID, summary string) (int64, error) {
	item, ok := f.items[id]
	if !ok || !item.Transcribed {
		return 0, nil
	}
	item.MarkSummarized(summary)
	f.summaries[id] = summary
	return 1, nil
}

func (f *fakeSystemStore) ListStuckDispatched(_ context.Context, _ time.Duration) ([]entities.AudioItem, error) {
	return nil, nil
}

type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.example/" + key, nil
}

type fakeSpeech struct {
	requestID string
	err       error
	failures  int
	calls     int
	bytesSeen []int
}

func (f *fakeSpeech) SubmitAudio(_ context.Context, audio io.Reader, _, _ string) (string, error) {
	f.calls++
	data, _ := io.ReadAll(audio)
	f.bytesSeen = append(f.bytesSeen, len(data))
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failures {
		return "", errors.New("provider unavailable")
	}
	return f.requestID, nil
}

type fakeSummarizer struct {
	summary string
	err     error
	lastIn  string
}

func (f *fakeSummarizer) GenerateSummary(_ context.Context, transcription string) (string, error) {
	f.lastIn = transcription
	return f.summary, f.err
}

type fakePublisher struct {
	events []events.TranscribedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event events.TranscribedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type harness struct {
	svc       *Service
	owner     *fakeOwnerStore
	system    *fakeSystemStore
	storage   *fakeStorage
	speech    *fakeSpeech
	summarize *fakeSummarizer
	publisher *fakePublisher
}

func newHarness() *harness {
	h := &harness{
		owner:     newFakeOwnerStore(),
		system:    newFakeSystemStore(),
		storage:   newFakeStorage(),
		speech:    &fakeSpeech{requestID: "req-1"},
		summarize: &fakeSummarizer{summary: "## Topic\n\nSummary."},
		publisher: &fakePublisher{},
	}
	h.svc = NewService(h.owner, h.system, h.storage, h.speech, h.summarize, h.publisher,
		"https://api.example/v1/webhooks/transcription", zap.NewNop())
	return h
}

func callbackBody(t *testing.T, requestID, text string) []byte {
	t.Helper()
	payload := CallbackPayload{
		Metadata: CallbackMetadata{RequestID: requestID, Duration: 3.2},
		Results: CallbackResults{
			Channels: []CallbackChannel{
				{
					Alternatives: []CallbackAlternative{
						{
							Paragraphs: CallbackParagraphs{
								Paragraphs: []CallbackParagraph{
									{Speaker: 0, Sentences: []CallbackSentence{{Text: text}}},
								},
							},
						},
					},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func TestUploadStoresBlobAndRow(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()

	item, err := h.svc.Upload(context.Background(), ownerID, "standup.webm",
		fmt.Sprintf("%s/audio-123.webm", ownerID), "audio/webm",
		strings.NewReader("blobdata"), 8, 30)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if _, ok := h.storage.objects[item.StorageKey]; !ok {
		t.Errorf("blob not stored under %q", item.StorageKey)
	}
	if got := item.Status(); got != entities.PipelineStatusCreated {
		t.Errorf("status = %v, want %v", got, entities.PipelineStatusCreated)
	}
	if _, ok := h.owner.items[item.ID]; !ok {
		t.Error("row not created")
	}
}

func TestDispatchAttachesRequestID(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()
	item := entities.NewAudioItem(ownerID, "standup.webm", "key/standup.webm", 30, 8)
	h.owner.items[item.ID] = item
	h.storage.objects["key/standup.webm"] = []byte("blob")

	got, err := h.svc.Dispatch(context.Background(), ownerID, "standup.webm", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if h.owner.lastRequest != "req-1" {
		t.Errorf("attached request id = %q, want %q", h.owner.lastRequest, "req-1")
	}
	if got.Status() != entities.PipelineStatusDispatched {
		t.Errorf("status = %v, want %v", got.Status(), entities.PipelineStatusDispatched)
	}
}

func TestDispatchUnknownFilename(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Dispatch(context.Background(), uuid.New(), "nope.webm", "")
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_AUDIO_ITEM_NOT_FOUND {
		t.Fatalf("err = %v, want AUDIO_ITEM_NOT_FOUND", err)
	}
	if h.speech.calls != 0 {
		t.Error("provider called for unknown filename")
	}
}

func TestDispatchAmbiguousMatch(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()
	item := entities.NewAudioItem(ownerID, "dup.webm", "key/dup.webm", 30, 8)
	h.owner.items[item.ID] = item
	h.storage.objects["key/dup.webm"] = []byte("blob")
	h.owner.attachRows = 2

	_, err := h.svc.Dispatch(context.Background(), ownerID, "dup.webm", "")
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_AMBIGUOUS_DISPATCH {
		t.Fatalf("err = %v, want AMBIGUOUS_DISPATCH", err)
	}
}

func TestDispatchRetrySubmitsFullAudio(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()
	item := entities.NewAudioItem(ownerID, "retry.webm", "key/retry.webm", 30, 8)
	h.owner.items[item.ID] = item
	h.storage.objects["key/retry.webm"] = []byte("0123456789")
	h.speech.failures = 1

	got, err := h.svc.Dispatch(context.Background(), ownerID, "retry.webm", "")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if h.speech.calls != 2 {
		t.Fatalf("calls = %d, want 2", h.speech.calls)
	}
	for i, n := range h.speech.bytesSeen {
		if n != 10 {
			t.Errorf("attempt %d submitted %d bytes, want 10", i+1, n)
		}
	}
	if got.ProviderRequestID == nil || *got.ProviderRequestID != "req-1" {
		t.Errorf("request id = %v", got.ProviderRequestID)
	}
}

func TestHandleCallbackCommitsAndPublishes(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkDispatched("req-9")
	h.system.add(item)

	err := h.svc.HandleCallback(context.Background(), callbackBody(t, "req-9", "Hello world."))
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if item.Transcription == nil || *item.Transcription != "Speaker 0: Hello world." {
		t.Errorf("transcription = %v", item.Transcription)
	}
	if len(h.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(h.publisher.events))
	}
	if h.publisher.events[0].ItemID != item.ID {
		t.Errorf("event item id = %v, want %v", h.publisher.events[0].ItemID, item.ID)
	}
}

func TestHandleCallbackEmptyResultsStillCommits(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkDispatched("req-9")
	h.system.add(item)

	body := []byte(`{"metadata": {"request_id": "req-9"}, "results": {"channels": []}}`)
	if err := h.svc.HandleCallback(context.Background(), body); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if !item.Transcribed {
		t.Error("transcribed flag not set for empty results")
	}
	if item.Transcription == nil || *item.Transcription != "" {
		t.Errorf("transcription = %v, want empty string", item.Transcription)
	}
	if len(h.publisher.events) != 1 || h.publisher.events[0].Transcription != "" {
		t.Errorf("events = %+v, want one empty-transcription event", h.publisher.events)
	}
}

func TestHandleCallbackOrphanRequestID(t *testing.T) {
	h := newHarness()

	err := h.svc.HandleCallback(context.Background(), callbackBody(t, "req-missing", "text"))
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_ORPHAN_CALLBACK {
		t.Fatalf("err = %v, want ORPHAN_CALLBACK", err)
	}
	if len(h.publisher.events) != 0 {
		t.Error("orphan callback published an event")
	}
}

func TestHandleCallbackMalformedBody(t *testing.T) {
	h := newHarness()

	for _, body := range []string{"not json", `{"results": {}}`} {
		err := h.svc.HandleCallback(context.Background(), []byte(body))
		var appErr apperrors.AppError
		if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_INVALID_PAYLOAD {
			t.Errorf("body %q: err = %v, want INVALID_PAYLOAD", body, err)
		}
	}
}

func TestHandleCallbackIsIdempotent(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkDispatched("req-9")
	h.system.add(item)

	body := callbackBody(t, "req-9", "Hello.")
	for i := 0; i < 2; i++ {
		if err := h.svc.HandleCallback(context.Background(), body); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	if h.system.commits != 2 {
		t.Errorf("commits = %d, want 2", h.system.commits)
	}
	if *item.Transcription != "Speaker 0: Hello." {
		t.Errorf("transcription = %q", *item.Transcription)
	}
}

func TestHandleCallbackPublishFailure(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkDispatched("req-9")
	h.system.add(item)
	h.publisher.err = errors.New("stream down")

	err := h.svc.HandleCallback(context.Background(), callbackBody(t, "req-9", "Hello."))
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_EVENT_PUBLISH_FAILED {
		t.Fatalf("err = %v, want EVENT_PUBLISH_FAILED", err)
	}
	// The commit still happened; the provider retry re-runs it harmlessly.
	if item.Transcription == nil {
		t.Error("transcription not committed before publish failure")
	}
}

func TestSummarizeStoresResult(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkTranscribed("Speaker 0: Hello.")
	h.system.add(item)

	summary, err := h.svc.Summarize(context.Background(), item.ID, "Speaker 0: Hello.")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != h.summarize.summary {
		t.Errorf("summary = %q", summary)
	}
	if h.summarize.lastIn != "Speaker 0: Hello." {
		t.Errorf("summarizer input = %q", h.summarize.lastIn)
	}
	if h.system.summaries[item.ID] != summary {
		t.Error("summary not stored")
	}
}

func TestSummarizeFallsBackToStoredTranscription(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkTranscribed("Speaker 1: Stored text.")
	h.system.add(item)

	if _, err := h.svc.Summarize(context.Background(), item.ID, ""); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if h.summarize.lastIn != "Speaker 1: Stored text." {
		t.Errorf("summarizer input = %q, want stored transcription", h.summarize.lastIn)
	}
}

func TestSummarizeUnknownItem(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Summarize(context.Background(), uuid.New(), "some text")
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_AUDIO_ITEM_NOT_FOUND {
		t.Fatalf("err = %v, want AUDIO_ITEM_NOT_FOUND", err)
	}
}

func TestSummarizeRejectsUntranscribedItem(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	h.system.add(item)

	_, err := h.svc.Summarize(context.Background(), item.ID, "text that never came from a callback")
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_NOT_TRANSCRIBED {
		t.Fatalf("err = %v, want NOT_TRANSCRIBED", err)
	}
	if item.Summary != nil {
		t.Errorf("summary %q stored on untranscribed item", *item.Summary)
	}
	if got := item.Status(); got != entities.PipelineStatusCreated {
		t.Errorf("status = %v, want %v", got, entities.PipelineStatusCreated)
	}
}

func TestSummarizeRejectsUntranscribedWithStoredText(t *testing.T) {
	h := newHarness()
	item := entities.NewAudioItem(uuid.New(), "a.webm", "k/a.webm", 30, 8)
	item.MarkDispatched("req-1")
	h.system.add(item)

	_, err := h.svc.Summarize(context.Background(), item.ID, "")
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.ErrorCode_NOT_TRANSCRIBED {
		t.Fatalf("err = %v, want NOT_TRANSCRIBED", err)
	}
	if h.summarize.lastIn != "" {
		t.Error("summarizer invoked for untranscribed item")
	}
}

func TestPlaybackURLScopedToOwner(t *testing.T) {
	h := newHarness()
	ownerID := uuid.New()
	item := entities.NewAudioItem(ownerID, "a.webm", "k/a.webm", 30, 8)
	h.owner.items[item.ID] = item

	url, err := h.svc.PlaybackURL(context.Background(), ownerID, item.ID)
	if err != nil {
		t.Fatalf("PlaybackURL: %v", err)
	}
	if !strings.HasSuffix(url, item.StorageKey) {
		t.Errorf("url = %q", url)
	}

	if _, err := h.svc.PlaybackURL(context.Background(), uuid.New(), item.ID); err == nil {
		t.Error("foreign owner got a playback URL")
	}
}
