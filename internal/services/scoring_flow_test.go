package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SAP-F-2025/exam-evaluation-service/internal/events"
	"github.com/SAP-F-2025/exam-evaluation-service/internal/models"
)

func TestSubmit_ObjectiveOnlyPromotesToEvaluated(t *testing.T) {
	env := newTestEnv(t)
	exam, qs := env.activeExam(t, 50, mcq(100, "B"))

	if exam.TotalMarks != 100 {
		t.Fatalf("total_marks = %d, want 100", exam.TotalMarks)
	}

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "B"})

	if attempt.Status != models.AttemptEvaluated {
		t.Errorf("status = %s, want evaluated", attempt.Status)
	}
	if attempt.TotalScore != 100 || !attempt.Passed {
		t.Errorf("total_score = %v passed = %v, want 100 true", attempt.TotalScore, attempt.Passed)
	}

	stored := env.reload(t, attempt.ID)
	assertTotalMatchesAnswers(t, stored)
	if stored.SubmittedAt == nil || stored.EvaluatedAt == nil {
		t.Errorf("submitted_at and evaluated_at must be set")
	}
	if got := len(env.publisher.EventsFor(events.TopicAttemptSubmitted)); got != 1 {
		t.Errorf("submitted events = %d, want 1", got)
	}
}

func TestEvaluate_LastTextAnswerPromotesAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 50, text(20), mcq(80, "C"))

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{
		qs[0].ID: "Osmosis moves water across a membrane",
		qs[1].ID: "C",
	})
	if attempt.Status != models.AttemptCompleted {
		t.Fatalf("status = %s, want completed", attempt.Status)
	}
	if attempt.TotalScore != 80 {
		t.Fatalf("total_score = %v, want 80", attempt.TotalScore)
	}

	stored := env.reload(t, attempt.ID)
	textAnswer := env.answerFor(t, stored, qs[0].ID)
	if !textAnswer.NeedsEvaluation {
		t.Fatalf("text answer should need evaluation")
	}

	result, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
		UserAnswerID: textAnswer.ID,
		IsCorrect:    boolPtr(true),
		ScoreAwarded: 15,
		Remarks:      strPtr("good"),
	}, "admin-1")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Attempt.TotalScore != 95 {
		t.Errorf("total_score = %v, want 95", result.Attempt.TotalScore)
	}
	if result.Attempt.Status != models.AttemptEvaluated {
		t.Errorf("status = %s, want evaluated", result.Attempt.Status)
	}
	if result.Answer.NeedsEvaluation {
		t.Errorf("answer still needs evaluation")
	}
	if !result.Stats.FullyEvaluated || result.Stats.ManualEvaluationNeeded != 0 {
		t.Errorf("stats = %+v, want fully evaluated", result.Stats)
	}

	stored = env.reload(t, attempt.ID)
	assertTotalMatchesAnswers(t, stored)
	if stored.EvaluatorID == nil || *stored.EvaluatorID != "admin-1" {
		t.Errorf("evaluator_id = %v, want admin-1", stored.EvaluatorID)
	}
	if got := len(env.publisher.EventsFor(events.TopicAttemptEvaluated)); got != 1 {
		t.Errorf("evaluated events = %d, want 1", got)
	}
}

func TestPublish_MakesEvaluatedResultsVisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 50, text(20), mcq(80, "C"))

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "answer", qs[1].ID: "C"})
	textAnswer := env.answerFor(t, env.reload(t, attempt.ID), qs[0].ID)
	if _, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
		UserAnswerID: textAnswer.ID,
		IsCorrect:    boolPtr(true),
		ScoreAwarded: 15,
	}, "admin-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if _, err := env.services.Student().GetMyResult(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrResultNotPublished) {
		t.Fatalf("result before publish: err = %v, want ErrResultNotPublished", err)
	}

	result, err := env.services.Publication().Publish(ctx, exam.ID, "admin-1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.PublishedCount != 1 || len(result.AttemptIDs) != 1 || result.AttemptIDs[0] != attempt.ID {
		t.Errorf("publish result = %+v, want attempt %d published", result, attempt.ID)
	}

	stored := env.reload(t, attempt.ID)
	if stored.Status != models.AttemptPublished || stored.PublishedAt == nil {
		t.Errorf("status = %s published_at = %v, want published", stored.Status, stored.PublishedAt)
	}
	if !stored.Exam.ResultsPublished {
		t.Errorf("exam results_published should be true")
	}

	view, err := env.services.Student().GetMyResult(ctx, attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("result after publish: %v", err)
	}
	if !view.ResultVisible || view.TotalScore == nil || *view.TotalScore != 95 {
		t.Errorf("view = %+v, want visible with total 95", view.StudentAttemptView)
	}
	for _, a := range view.Answers {
		if a.Question != nil && a.Question.CorrectAnswer != nil {
			t.Errorf("answer key leaked for question %d", a.QuestionID)
		}
	}
	if got := len(env.publisher.EventsFor(events.TopicResultsPublished)); got != 1 {
		t.Errorf("published events = %d, want 1", got)
	}
}

func TestPublish_FailsLoudlyOnUnevaluatedAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 10, text(10), mcq(10, "A"))

	done := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "x", qs[1].ID: "A"})
	textAnswer := env.answerFor(t, env.reload(t, done.ID), qs[0].ID)
	if _, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
		UserAnswerID: textAnswer.ID, IsCorrect: boolPtr(false), ScoreAwarded: 0,
	}, "admin-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	waiting := env.submit(t, exam.ID, "student-2", map[uint]string{qs[0].ID: "y", qs[1].ID: "B"})

	_, err := env.services.Publication().Publish(ctx, exam.ID, "admin-1")
	var unevaluated *UnevaluatedAttemptsError
	if !errors.As(err, &unevaluated) {
		t.Fatalf("err = %v, want UnevaluatedAttemptsError", err)
	}
	if len(unevaluated.AttemptIDs) != 1 || unevaluated.AttemptIDs[0] != waiting.ID {
		t.Errorf("blocking attempts = %v, want [%d]", unevaluated.AttemptIDs, waiting.ID)
	}

	// Nothing moved
	if got := env.reload(t, done.ID); got.Status != models.AttemptEvaluated || got.Exam.ResultsPublished {
		t.Errorf("status = %s results_published = %v, want untouched", got.Status, got.Exam.ResultsPublished)
	}
}

func TestPublish_SkipsPendingAndRepublishes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 1, mcq(2, "A"))

	first := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "A"})
	if _, err := env.services.Attempt().Start(ctx, exam.ID, "student-2"); err != nil {
		t.Fatalf("start: %v", err)
	}

	result, err := env.services.Publication().Publish(ctx, exam.ID, "admin-1")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.PublishedCount != 1 || result.SkippedPending != 1 {
		t.Errorf("result = %+v, want 1 published 1 skipped", result)
	}

	second := env.submit(t, exam.ID, "student-3", map[uint]string{qs[0].ID: "B"})
	result, err = env.services.Publication().Publish(ctx, exam.ID, "admin-1")
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if result.PublishedCount != 1 || result.AttemptIDs[0] != second.ID {
		t.Errorf("republish = %+v, want only attempt %d", result, second.ID)
	}
	if got := env.reload(t, first.ID).Status; got != models.AttemptPublished {
		t.Errorf("first attempt status = %s, want published", got)
	}
}

func TestPublish_RequiresAttempts(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.activeExam(t, 1, mcq(2, "A"))

	_, err := env.services.Publication().Publish(context.Background(), exam.ID, "admin-1")
	var rule *BusinessRuleError
	if !errors.As(err, &rule) {
		t.Fatalf("err = %v, want BusinessRuleError", err)
	}

	if _, err := env.services.Publication().Publish(context.Background(), 9999, "admin-1"); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("unknown exam: err = %v, want ErrExamNotFound", err)
	}
}

func TestEvaluate_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 5, text(10), mcq(10, "A"))

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "x", qs[1].ID: "A"})
	stored := env.reload(t, attempt.ID)
	textAnswer := env.answerFor(t, stored, qs[0].ID)
	mcqAnswer := env.answerFor(t, stored, qs[1].ID)

	pendingSession, err := env.services.Attempt().Start(ctx, exam.ID, "student-2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	pendingText := env.answerFor(t, env.reload(t, pendingSession.Attempt.ID), qs[0].ID)

	tests := []struct {
		name    string
		req     *models.EvaluateAnswerRequest
		wantErr func(error) bool
	}{
		{
			name: "negative score",
			req:  &models.EvaluateAnswerRequest{UserAnswerID: textAnswer.ID, IsCorrect: boolPtr(false), ScoreAwarded: -1},
			wantErr: func(err error) bool {
				var ve ValidationErrors
				return errors.As(err, &ve)
			},
		},
		{
			name: "score above marks",
			req:  &models.EvaluateAnswerRequest{UserAnswerID: textAnswer.ID, IsCorrect: boolPtr(true), ScoreAwarded: 10.5},
			wantErr: func(err error) bool {
				var ve ValidationErrors
				return errors.As(err, &ve)
			},
		},
		{
			name: "objective answer",
			req:  &models.EvaluateAnswerRequest{UserAnswerID: mcqAnswer.ID, IsCorrect: boolPtr(true), ScoreAwarded: 1},
			wantErr: func(err error) bool {
				var ve ValidationErrors
				return errors.As(err, &ve)
			},
		},
		{
			name:    "unknown answer",
			req:     &models.EvaluateAnswerRequest{UserAnswerID: 9999, IsCorrect: boolPtr(true), ScoreAwarded: 1},
			wantErr: func(err error) bool { return errors.Is(err, ErrAnswerNotFound) },
		},
		{
			name:    "pending attempt",
			req:     &models.EvaluateAnswerRequest{UserAnswerID: pendingText.ID, IsCorrect: boolPtr(true), ScoreAwarded: 1},
			wantErr: func(err error) bool { return errors.Is(err, ErrAttemptNotSubmitted) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.services.Evaluation().Evaluate(ctx, tt.req, "admin-1")
			if err == nil || !tt.wantErr(err) {
				t.Fatalf("err = %v, unexpected", err)
			}
		})
	}

	after := env.reload(t, attempt.ID)
	if after.TotalScore != 10 || after.Status != models.AttemptCompleted || after.Version != stored.Version {
		t.Errorf("attempt changed after rejections: score=%v status=%s version=%d", after.TotalScore, after.Status, after.Version)
	}
	if a := env.answerFor(t, after, qs[0].ID); !a.NeedsEvaluation || a.ScoreAwarded != 0 {
		t.Errorf("text answer changed after rejections: %+v", a)
	}
}

func TestEvaluate_ReevaluationOverwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 5, text(10))

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "x"})
	answer := env.answerFor(t, env.reload(t, attempt.ID), qs[0].ID)

	for _, score := range []float64{8, 3} {
		if _, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
			UserAnswerID: answer.ID, IsCorrect: boolPtr(score >= 5), ScoreAwarded: score,
		}, "admin-1"); err != nil {
			t.Fatalf("evaluate %v: %v", score, err)
		}
	}

	stored := env.reload(t, attempt.ID)
	if stored.TotalScore != 3 || stored.Passed {
		t.Errorf("total_score = %v passed = %v, want 3 false", stored.TotalScore, stored.Passed)
	}
	if stored.Status != models.AttemptEvaluated {
		t.Errorf("status = %s, want evaluated", stored.Status)
	}
	assertTotalMatchesAnswers(t, stored)
}

func TestEvaluate_ConcurrentEvaluationsKeepEveryScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 5, text(10), text(10), text(10), text(10))

	answers := map[uint]string{}
	for _, q := range qs {
		answers[q.ID] = "essay"
	}
	attempt := env.submit(t, exam.ID, "student-1", answers)
	stored := env.reload(t, attempt.ID)

	var wg sync.WaitGroup
	errs := make(chan error, len(stored.Answers))
	for i, a := range stored.Answers {
		wg.Add(1)
		go func(answerID uint, score float64) {
			defer wg.Done()
			_, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
				UserAnswerID: answerID, IsCorrect: boolPtr(true), ScoreAwarded: score,
			}, "admin-1")
			errs <- err
		}(a.ID, float64(i+1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}

	final := env.reload(t, attempt.ID)
	if final.TotalScore != 1+2+3+4 {
		t.Errorf("total_score = %v, want 10", final.TotalScore)
	}
	if final.Status != models.AttemptEvaluated {
		t.Errorf("status = %s, want evaluated", final.Status)
	}
	assertTotalMatchesAnswers(t, final)
}

func TestRecompute_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 2, mcq(2, "A"), trueFalse(1, "true"))

	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "A", qs[1].ID: "False"})

	first, err := env.services.Scoring().Recompute(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second, err := env.services.Scoring().Recompute(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("recompute again: %v", err)
	}

	if first.TotalScore != second.TotalScore || first.Passed != second.Passed {
		t.Errorf("recompute not idempotent: %+v then %+v", first, second)
	}
	if first.TotalScore != 2 || !first.Passed {
		t.Errorf("summary = %+v, want total 2 passed", first)
	}

	if _, err := env.services.Scoring().Recompute(ctx, 9999); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("unknown attempt: err = %v, want ErrAttemptNotFound", err)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 1, mcq(2, "A"))
	_, otherQs := env.activeExam(t, 1, mcq(2, "A"))

	session, err := env.services.Attempt().Start(ctx, exam.ID, "student-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	foreign := &models.SubmitAttemptRequest{Answers: []models.AnswerSubmission{
		{QuestionID: otherQs[0].ID, AnswerText: strPtr("A")},
	}}
	var ve ValidationErrors
	if _, err := env.services.Attempt().Submit(ctx, session.Attempt.ID, foreign, "student-1"); !errors.As(err, &ve) {
		t.Errorf("foreign question: err = %v, want ValidationErrors", err)
	}

	duplicate := &models.SubmitAttemptRequest{Answers: []models.AnswerSubmission{
		{QuestionID: qs[0].ID, AnswerText: strPtr("A")},
		{QuestionID: qs[0].ID, AnswerText: strPtr("B")},
	}}
	if _, err := env.services.Attempt().Submit(ctx, session.Attempt.ID, duplicate, "student-1"); !errors.As(err, &ve) {
		t.Errorf("duplicate question: err = %v, want ValidationErrors", err)
	}

	valid := &models.SubmitAttemptRequest{Answers: []models.AnswerSubmission{{QuestionID: qs[0].ID, AnswerText: strPtr("A")}}}
	var perm *PermissionError
	if _, err := env.services.Attempt().Submit(ctx, session.Attempt.ID, valid, "student-2"); !errors.As(err, &perm) {
		t.Errorf("other user: err = %v, want PermissionError", err)
	}

	if got := env.reload(t, session.Attempt.ID).Status; got != models.AttemptPending {
		t.Fatalf("status after rejections = %s, want pending", got)
	}

	if _, err := env.services.Attempt().Submit(ctx, session.Attempt.ID, valid, "student-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.services.Attempt().Submit(ctx, session.Attempt.ID, valid, "student-1"); !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("second submit: err = %v, want ErrAttemptAlreadySubmitted", err)
	}
	if _, err := env.services.Attempt().Start(ctx, exam.ID, "student-1"); !errors.Is(err, ErrAttemptAlreadyExists) {
		t.Errorf("restart: err = %v, want ErrAttemptAlreadyExists", err)
	}
}

func TestStart_ResumesPendingAndHidesKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, _ := env.activeExam(t, 1, mcq(2, "A"), text(3))

	first, err := env.services.Attempt().Start(ctx, exam.ID, "student-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := env.services.Attempt().Start(ctx, exam.ID, "student-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if first.Attempt.ID != again.Attempt.ID {
		t.Errorf("resume created attempt %d, want %d", again.Attempt.ID, first.Attempt.ID)
	}
	for _, q := range first.Questions {
		if q.CorrectAnswer != nil {
			t.Errorf("question %d exposes its key", q.ID)
		}
	}

	stats, err := env.services.Attempt().GetWithStats(ctx, first.Attempt.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Stats.TotalQuestions != 2 || stats.Stats.ManualEvaluationNeeded != 1 || stats.Stats.FullyEvaluated {
		t.Errorf("stats = %+v, want 2 questions with 1 manual pending", stats.Stats)
	}

	draft, err := env.services.Exam().Create(ctx, &models.ExamCreateRequest{Title: "Draft", Duration: 10}, "admin-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.services.Attempt().Start(ctx, draft.ID, "student-1"); !errors.Is(err, ErrExamNotActive) {
		t.Errorf("draft exam: err = %v, want ErrExamNotActive", err)
	}
}

func TestExamService_ScoringLockedOnceAttemptsExist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, _ := env.activeExam(t, 1, mcq(2, "A"))

	if _, err := env.services.Attempt().Start(ctx, exam.ID, "student-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	marks := 2
	if _, err := env.services.Exam().Update(ctx, exam.ID, &models.ExamUpdateRequest{PassingMarks: &marks}); !errors.Is(err, ErrExamLocked) {
		t.Errorf("passing marks change: err = %v, want ErrExamLocked", err)
	}

	title := "Renamed midterm"
	updated, err := env.services.Exam().Update(ctx, exam.ID, &models.ExamUpdateRequest{Title: &title})
	if err != nil {
		t.Fatalf("metadata update: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}

	if _, err := env.services.Exam().AddQuestion(ctx, exam.ID, mcq(1, "A")); !errors.Is(err, ErrExamNotEditable) {
		t.Errorf("add question on active exam: err = %v, want ErrExamNotEditable", err)
	}
}

func TestStudentService_ListWithholdsScores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 1, mcq(2, "A"))
	env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "A"})

	page, err := env.services.Student().ListMyAttempts(ctx, "student-1", models.ListAttemptsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	views, ok := page.Data.([]models.StudentAttemptView)
	if !ok || len(views) != 1 {
		t.Fatalf("data = %#v, want one view", page.Data)
	}
	if views[0].ResultVisible || views[0].TotalScore != nil {
		t.Errorf("scores visible before publication: %+v", views[0])
	}

	if _, err := env.services.Publication().Publish(ctx, exam.ID, "admin-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	page, err = env.services.Student().ListMyAttempts(ctx, "student-1", models.ListAttemptsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	views = page.Data.([]models.StudentAttemptView)
	if !views[0].ResultVisible || views[0].TotalScore == nil || *views[0].TotalScore != 2 {
		t.Errorf("view after publish = %+v, want visible total 2", views[0])
	}

	var perm *PermissionError
	if _, err := env.services.Student().GetMyResult(ctx, views[0].AttemptID, "student-2"); !errors.As(err, &perm) {
		t.Errorf("foreign result: err = %v, want PermissionError", err)
	}
}

func TestEvaluate_EventFailureDoesNotFailEvaluation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	exam, qs := env.activeExam(t, 1, text(4))
	attempt := env.submit(t, exam.ID, "student-1", map[uint]string{qs[0].ID: "x"})
	answer := env.answerFor(t, env.reload(t, attempt.ID), qs[0].ID)

	env.publisher.FailWith(errors.New("broker down"))
	if _, err := env.services.Evaluation().Evaluate(ctx, &models.EvaluateAnswerRequest{
		UserAnswerID: answer.ID, IsCorrect: boolPtr(true), ScoreAwarded: 4,
	}, "admin-1"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := env.reload(t, attempt.ID); got.Status != models.AttemptEvaluated || got.TotalScore != 4 {
		t.Errorf("status = %s total = %v, want evaluated 4", got.Status, got.TotalScore)
	}
}
