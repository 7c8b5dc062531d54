package service

import "errors"

// ErrUnknownDepartment is returned when a forward targets a department that
// does not exist
var ErrUnknownDepartment = errors.New("unknown department")
