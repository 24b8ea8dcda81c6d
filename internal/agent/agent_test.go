package agent_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/agent"
	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/learning"
	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/service"
	"github.com/Veraticus/receipt-flow/internal/session"
	"github.com/Veraticus/receipt-flow/internal/testutil"
)

func itineraryGateway() *testutil.MockGateway {
	return testutil.NewMockGateway().
		OnVision(testutil.PromptCheck, `{"is_document": true, "reason": "行程单"}`).
		OnVision(testutil.PromptRecognize, "```markdown\n# 电子客票行程单\n航班号：CA1234\n票价合计：￥553.00\n```").
		OnText(testutil.PromptClassify, `{"professional_category": "行程单", "user_category": "交通出行", "reasoning": "包含航班号"}`).
		OnText(testutil.PromptIntent, `{"analysis": "出差", "has_explicit_classification": false, "information_extraction": ""}`).
		OnText(testutil.PromptTags, `{"tags": ["差旅商务出行"], "reasoning": "乘机"}`).
		OnText(testutil.PromptStructure, `{"structured_data": {"departure_datetime": "2025-04-09 08:30", "total_amount": 553}}`)
}

type fixture struct {
	agent *agent.Agent
	db    *testutil.TestDB
	gw    *testutil.MockGateway
}

func newFixture(t *testing.T, gw *testutil.MockGateway) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return newFixtureWithStorage(t, gw, db, db.Storage)
}

func newFixtureWithStorage(t *testing.T, gw *testutil.MockGateway, db *testutil.TestDB, storage service.Storage) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewManager(session.Options{Logger: logger})
	return &fixture{
		agent: agent.New(storage, llm.NewRouter(gw, gw), sessions, logger),
		db:    db,
		gw:    gw,
	}
}

// failingStorage fails the next N document or user saves, then delegates.
type failingStorage struct {
	service.Storage
	documentFailures int
	userFailures     int
}

func (s *failingStorage) SaveDocument(ctx context.Context, userID string, doc *model.Document) error {
	if s.documentFailures > 0 {
		s.documentFailures--
		return errors.New("disk full")
	}
	return s.Storage.SaveDocument(ctx, userID, doc)
}

func (s *failingStorage) SaveUser(ctx context.Context, user *model.User) error {
	if s.userFailures > 0 {
		s.userFailures--
		return errors.New("disk full")
	}
	return s.Storage.SaveUser(ctx, user)
}

func (f *fixture) upload(t *testing.T) *session.Session {
	t.Helper()
	sess, err := f.agent.Upload(context.Background(), "u1", "ticket.jpg", "出差机票", "")
	require.NoError(t, err)
	require.Equal(t, session.StatePending, sess.State)
	return sess
}

func TestUploadStoresPendingDocument(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	require.NotNil(t, sess.Document)
	assert.Equal(t, model.StatusPending, sess.Document.Status)
	assert.NotNil(t, sess.Classification)
	assert.Empty(t, sess.Degraded)

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	assert.Equal(t, model.DocumentItinerary, doc.Type)
	assert.Equal(t, model.CategoryTransportation, doc.UserCategory)
	assert.Equal(t, []string{"差旅商务出行"}, doc.Tags)

	user := f.db.MustLoadUser("u1")
	assert.Equal(t, []string{doc.ID}, user.DocumentIDs)
}

func TestUploadInvalidImage(t *testing.T) {
	gw := testutil.NewMockGateway().
		OnVision(testutil.PromptCheck, `{"is_document": false, "reason": "这是一张风景照"}`)
	f := newFixture(t, gw)

	sess, err := f.agent.Upload(context.Background(), "u1", "cat.jpg", "", "")
	require.NoError(t, err)

	assert.Equal(t, session.StateError, sess.State)
	assert.True(t, sess.InvalidImage)
	assert.Equal(t, "上传的图片不是票据: 这是一张风景照", sess.Error)
	assert.Nil(t, sess.Document)
	assert.Equal(t, 1, gw.CallCount(testutil.KindVision, ""))
	assert.Equal(t, 0, gw.CallCount(testutil.KindText, ""))

	assert.Empty(t, f.db.MustLoadUser("u1").DocumentIDs)
}

func TestUploadStageFailure(t *testing.T) {
	gw := testutil.NewMockGateway().
		OnTextError(testutil.PromptClassify, errors.New("upstream unavailable")).
		Extend(itineraryGateway())
	f := newFixture(t, gw)

	sess, err := f.agent.Upload(context.Background(), "u1", "ticket.jpg", "", "")
	require.NoError(t, err)

	assert.Equal(t, session.StateError, sess.State)
	assert.False(t, sess.InvalidImage)
	assert.Contains(t, sess.Error, "upstream unavailable")
	assert.Empty(t, f.db.MustLoadUser("u1").DocumentIDs)
}

func TestConfirmWithoutEdits(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	ok, err := f.agent.Confirm(context.Background(), sess.ID, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	assert.Equal(t, model.StatusVerified, doc.Status)
	assert.Empty(t, f.db.MustLoadUser("u1").History.Feedbacks)

	got, found := f.agent.Sessions().Get(sess.ID)
	require.True(t, found)
	assert.Equal(t, session.StateConfirmed, got.State)

	t.Run("second confirm fails", func(t *testing.T) {
		ok, err := f.agent.Confirm(context.Background(), sess.ID, nil)
		assert.False(t, ok)
		assert.ErrorIs(t, err, agent.ErrNotPending)
	})
}

func TestConfirmWithEditsRecordsFeedback(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	ok, err := f.agent.Confirm(context.Background(), sess.ID, &agent.Modifications{
		UserCategory: model.CategoryEducationEntertainment,
		Tags:         []string{"长途旅行交通", "长途旅行交通"},
	})
	require.NoError(t, err)
	require.True(t, ok)

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	assert.Equal(t, model.CategoryEducationEntertainment, doc.UserCategory)
	assert.Equal(t, []string{"长途旅行交通"}, doc.Tags)

	feedbacks := f.db.MustLoadUser("u1").History.Feedbacks
	require.Len(t, feedbacks, 1)
	fb := feedbacks[0]
	assert.Equal(t, doc.ID, fb.DocumentID)
	assert.Equal(t, model.SourceManual, fb.Source)
	assert.Equal(t, model.CategoryTransportation, fb.OriginalUserCategory)
	assert.Equal(t, model.CategoryEducationEntertainment, fb.NewUserCategory)
	assert.Equal(t, []string{"差旅商务出行"}, fb.OriginalTags)
	assert.False(t, fb.CategoryChanged())
	assert.True(t, fb.TagsChanged())
}

func TestConfirmEditsMatchingProposalRecordNothing(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	ok, err := f.agent.Confirm(context.Background(), sess.ID, &agent.Modifications{
		DocumentType: model.DocumentItinerary,
		Tags:         []string{"差旅商务出行"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.db.MustLoadUser("u1").History.Feedbacks)
}

func TestConfirmAlreadyVerifiedDocument(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	require.NoError(t, doc.Transition(model.StatusVerified))
	require.NoError(t, f.db.Storage.SaveDocument(context.Background(), "u1", doc))

	ok, err := f.agent.Confirm(context.Background(), sess.ID, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, agent.ErrNotPending)

	got, _ := f.agent.Sessions().Get(sess.ID)
	assert.Equal(t, session.StatePending, got.State)
}

func TestConfirmFailures(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	tests := []struct {
		mods      *agent.Modifications
		wantErr   error
		name      string
		sessionID string
	}{
		{name: "unknown session", sessionID: "missing", wantErr: common.ErrNotFound},
		{name: "unknown document type", sessionID: sess.ID, mods: &agent.Modifications{DocumentType: "护照"}, wantErr: agent.ErrInvalidEdit},
		{name: "unknown category", sessionID: sess.ID, mods: &agent.Modifications{UserCategory: "彩票"}, wantErr: agent.ErrInvalidEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.agent.Confirm(context.Background(), tt.sessionID, tt.mods)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	assert.Equal(t, model.StatusPending, doc.Status)
}

func TestConfirmRetryAfterFailedSave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	storage := &failingStorage{Storage: db.Storage}
	f := newFixtureWithStorage(t, itineraryGateway(), db, storage)
	sess := f.upload(t)

	mods := &agent.Modifications{UserCategory: model.CategoryEducationEntertainment}
	storage.documentFailures = 1

	ok, err := f.agent.Confirm(context.Background(), sess.ID, mods)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, model.StatusPending, f.db.MustLoadDocument("u1", sess.DocumentID()).Status)
	assert.Empty(t, f.db.MustLoadUser("u1").History.Feedbacks)

	got, _ := f.agent.Sessions().Get(sess.ID)
	assert.Equal(t, session.StatePending, got.State)

	ok, err = f.agent.Confirm(context.Background(), sess.ID, mods)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.StatusVerified, f.db.MustLoadDocument("u1", sess.DocumentID()).Status)
	assert.Len(t, f.db.MustLoadUser("u1").History.Feedbacks, 1)
}

func TestConfirmSurvivesFailedFeedbackSave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	storage := &failingStorage{Storage: db.Storage}
	f := newFixtureWithStorage(t, itineraryGateway(), db, storage)
	sess := f.upload(t)

	storage.userFailures = 1
	ok, err := f.agent.Confirm(context.Background(), sess.ID, &agent.Modifications{Tags: []string{"长途旅行交通"}})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, model.StatusVerified, f.db.MustLoadDocument("u1", sess.DocumentID()).Status)
	assert.Empty(t, f.db.MustLoadUser("u1").History.Feedbacks)

	got, _ := f.agent.Sessions().Get(sess.ID)
	assert.Equal(t, session.StateConfirmed, got.State)
}

func TestConfirmErrorSession(t *testing.T) {
	gw := testutil.NewMockGateway().OnVision(testutil.PromptCheck, `{"is_document": false, "reason": "空白"}`)
	f := newFixture(t, gw)

	sess, err := f.agent.Upload(context.Background(), "u1", "blank.jpg", "", "")
	require.NoError(t, err)

	ok, err := f.agent.Confirm(context.Background(), sess.ID, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, agent.ErrNoDocument)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)

	ok, err := f.agent.Cancel(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	doc := f.db.MustLoadDocument("u1", sess.DocumentID())
	assert.Equal(t, model.StatusVoided, doc.Status)

	got, _ := f.agent.Sessions().Get(sess.ID)
	assert.Equal(t, session.StateCancelled, got.State)

	ok, err = f.agent.Confirm(context.Background(), sess.ID, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, agent.ErrNotPending)
}

func TestTriggerFeedbackLearning(t *testing.T) {
	gw := itineraryGateway().
		OnText(testutil.PromptFeedback, `{"feedback": "用户把机票算作旅行"}`).
		OnText(testutil.PromptRules, `{"summary": "新增规则", "operations": [{"type": "add", "rule": {"rule_text": "机票归入长途旅行交通"}}]}`)
	f := newFixture(t, gw)

	for range 3 {
		sess := f.upload(t)
		ok, err := f.agent.Confirm(context.Background(), sess.ID, &agent.Modifications{Tags: []string{"长途旅行交通"}})
		require.NoError(t, err)
		require.True(t, ok)
	}

	var calls int
	result, err := f.agent.TriggerFeedbackLearning(context.Background(), "u1", 0, 0, func(int, int) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 3, result.FeedbackCount)
	assert.Equal(t, 1, result.Requests)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"机票归入长途旅行交通"}, result.Rules)

	user := f.db.MustLoadUser("u1")
	assert.Equal(t, []string{"机票归入长途旅行交通"}, user.Rules)
	assert.Empty(t, user.History.Feedbacks)

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.agent.TriggerFeedbackLearning(context.Background(), "nobody", 0, 0, nil)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestOptimizeProfile(t *testing.T) {
	gw := itineraryGateway().
		OnText(testutil.PromptProfile, `{"operations": [{"type": "add", "profile_item": {"text": "经常乘飞机出差"}}]}`)
	f := newFixture(t, gw)
	f.upload(t)

	t.Run("automatic trigger is ignored", func(t *testing.T) {
		result, err := f.agent.OptimizeProfile(context.Background(), "u1", false)
		require.NoError(t, err)
		assert.False(t, result.Triggered)
		assert.Equal(t, learning.ReasonNotTriggered, result.Reason)
	})

	t.Run("manual trigger updates profile", func(t *testing.T) {
		f.db.SeedDocuments(f.db.MustLoadUser("u1"), testutil.NewDocument("u1").UploadedAt(time.Now().Add(time.Hour)).Build())

		result, err := f.agent.OptimizeProfile(context.Background(), "u1", true)
		require.NoError(t, err)
		assert.True(t, result.Applied)

		user := f.db.MustLoadUser("u1")
		assert.Equal(t, []string{"经常乘飞机出差"}, user.Profile.Items)
		assert.NotNil(t, user.LastProfileOptimization)
	})
}

func TestCategoryTags(t *testing.T) {
	f := newFixture(t, testutil.NewMockGateway())
	ctx := context.Background()

	require.NoError(t, f.agent.AddCategoryTag(ctx, "u1", model.CategoryDining, "夜宵外卖"))
	assert.Contains(t, f.db.MustLoadUser("u1").Categories.Tags(model.CategoryDining), "夜宵外卖")

	require.NoError(t, f.agent.RemoveCategoryTag(ctx, "u1", model.CategoryDining, "夜宵外卖"))
	assert.NotContains(t, f.db.MustLoadUser("u1").Categories.Tags(model.CategoryDining), "夜宵外卖")

	err := f.agent.AddCategoryTag(ctx, "u1", "彩票", "刮刮乐")
	assert.ErrorIs(t, err, model.ErrUnknownCategory)

	err = f.agent.RemoveCategoryTag(ctx, "u1", model.CategoryDining, "不存在")
	assert.ErrorIs(t, err, model.ErrTagNotFound)

	tags, err := f.agent.CategoryTags(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tags[model.CategoryDining], len(model.DefaultCategoryTags[model.CategoryDining]))
}

func TestUserSummary(t *testing.T) {
	f := newFixture(t, itineraryGateway())
	sess := f.upload(t)
	_, err := f.agent.Confirm(context.Background(), sess.ID, &agent.Modifications{Tags: []string{"日常通勤出行"}})
	require.NoError(t, err)
	f.upload(t)

	summary, err := f.agent.UserSummary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", summary.ID)
	assert.Equal(t, 2, summary.DocumentCount)
	assert.Equal(t, 1, summary.PendingFeedbacks)
	assert.Equal(t, 1, summary.Learning.TagChanges)
	assert.Equal(t, 1, summary.ActiveSessions)
	assert.Len(t, summary.Categories, len(model.UserCategories))

	_, err = f.agent.UserSummary(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
