package views

import "errors"

var (
	ErrEmptyName       = errors.New("view name is empty")
	ErrReservedName    = errors.New("view name is reserved")
	ErrNameConflict    = errors.New("view name already exists")
	ErrViewNotFound    = errors.New("view not found")
	ErrDefaultReadOnly = errors.New("the Default view cannot be changed")
	ErrSwitchPending   = errors.New("a view switch is waiting for a resolution")
	ErrNoPendingSwitch = errors.New("no view switch is pending")
	ErrBadResolution   = errors.New("unknown switch resolution")
)
