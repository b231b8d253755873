package domain

import "errors"

var (
	ErrIssueNotFound = errors.New("issue not found")
)
