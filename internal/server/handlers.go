package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/interviewer/internal/ai"
	"github.com/spigell/interviewer/internal/interview"
	"github.com/spigell/interviewer/internal/logger"
	"github.com/spigell/interviewer/internal/resume"
)

type createRequest struct {
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text"`
}

type answerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type simulateResponse struct {
	Answer string         `json:"answer"`
	Next   interview.Step `json:"next"`
}

type finishResponse struct {
	*interview.FinishResult
	ReportURL string `json:"report_url"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createInterview(w http.ResponseWriter, r *http.Request) {
	posting, err := readPosting(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	_, step, err := s.interviews.CreateSession(r.Context(), posting)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, step)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.interviews.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		s.fail(w, r, badRequest("question_id is required"))
		return
	}

	step, err := s.interviews.SubmitAnswer(r.Context(), chi.URLParam(r, "id"), req.QuestionID, req.Answer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) simulateAnswer(w http.ResponseWriter, r *http.Request) {
	answer, step, err := s.interviews.SimulateAnswer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, simulateResponse{Answer: answer, Next: step})
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	res, err := s.interviews.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	message := "Interview finished."
	if res.Partial {
		message = "Interview finished early; only answered questions were evaluated."
	}
	writeJSON(w, http.StatusOK, finishResponse{
		FinishResult: res,
		ReportURL:    s.reportURL(res.SessionID),
		Message:      message,
	})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	text, err := s.interviews.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

type requestError struct {
	msg string
}

func (e requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return requestError{msg: fmt.Sprintf(format, args...)}
}

// readPosting accepts a multipart upload with a resume_file or a JSON body
// carrying resume_text.
func readPosting(r *http.Request) (ai.Posting, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return ai.Posting{}, badRequest("invalid multipart form: %v", err)
		}

		posting := ai.Posting{
			JobTitle:       strings.TrimSpace(r.FormValue("job_title")),
			JobDescription: strings.TrimSpace(r.FormValue("job_description")),
		}

		file, header, err := r.FormFile("resume_file")
		if err != nil {
			return ai.Posting{}, badRequest("resume_file is required")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return ai.Posting{}, badRequest("read resume_file: %v", err)
		}
		text, err := resume.Extract(header.Filename, data)
		if err != nil {
			return ai.Posting{}, err
		}
		posting.ResumeText = text
		return posting, validatePosting(posting)
	}

	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		return ai.Posting{}, err
	}
	posting := ai.Posting{
		JobTitle:       strings.TrimSpace(req.JobTitle),
		JobDescription: strings.TrimSpace(req.JobDescription),
		ResumeText:     req.ResumeText,
	}
	return posting, validatePosting(posting)
}

func validatePosting(p ai.Posting) error {
	if p.JobTitle == "" {
		return badRequest("job_title is required")
	}
	if p.JobDescription == "" {
		return badRequest("job_description is required")
	}
	return nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes))
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func statusFor(err error) int {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, interview.ErrEmptyResumeText),
		errors.Is(err, resume.ErrEmpty),
		errors.Is(err, resume.ErrUnsupported),
		errors.Is(err, resume.ErrUnreadable):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrInterviewComplete),
		errors.Is(err, interview.ErrInterviewFinished),
		errors.Is(err, interview.ErrReportNotReady):
		return http.StatusConflict
	case errors.Is(err, interview.ErrNoQuestionsGenerated),
		errors.Is(err, ai.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	log := s.logger.With(zap.Int("status", status), zap.Error(err))
	if id := chi.URLParam(r, "id"); id != "" {
		log = log.With(zap.String(logger.FieldSession, id))
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Debug("request rejected")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
