// Package permission implements the scoped permission resolution core.
//
// Permissions are identified by validated codenames and tagged with a scope:
// global or local to exactly one website. Users receive permissions through
// role assignments and through direct grants; a direct grant may also be an
// explicit denial, which removes a role-derived permission in the same scope.
// Resolution is a pure merge over in-memory inputs: the package performs no
// I/O and never errors for a valid input; absent data simply resolves to an
// empty set.
package permission
