// Package repository implements the database access layer: one small
// struct per table, plain database/sql, `?` placeholders.  Sentinel errors
// defined here let handlers map failures to HTTP responses without string
// matching.
package repository

import "errors"

// ErrEmailExists is returned when an insert collides with the unique email
// index.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when a referenced entity does not exist.
// Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrDuplicateMember is returned when a user is already a member of the
// workspace or project they are being added to.
var ErrDuplicateMember = errors.New("already a member")

// ErrOwnerImmutable is returned on attempts to remove or change the role of
// a workspace owner or project lead.  Ownership transfer is not
// implemented, so these rows cannot be touched.
var ErrOwnerImmutable = errors.New("owner role cannot be changed or removed")

// ErrNotWorkspaceMember is returned when a user is added to a project
// without first being a member of the parent workspace.  This is a hard
// precondition, not an authorization failure.
var ErrNotWorkspaceMember = errors.New("user is not a member of the parent workspace")
