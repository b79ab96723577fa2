package service

import "errors"

// ErrEmptyQuery indicates a search was requested without text.
var ErrEmptyQuery = errors.New("search query is empty")
