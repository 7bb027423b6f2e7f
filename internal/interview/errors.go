package interview

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrEmptyResumeText      = errors.New("resume contains no readable text")
	ErrNoQuestionsGenerated = errors.New("no interview questions were generated")
	ErrReportNotReady       = errors.New("report has not been produced yet")
	ErrInterviewComplete    = errors.New("interview is already complete")
	ErrInterviewFinished    = errors.New("interview has already been finished")
)
