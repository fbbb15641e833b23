package cms

import "path"

// ResolveView joins a view path onto the package that ships the view.
// Admin UI bundlers resolve the result as a module path.
func ResolveView(pkg, view string) string {
	return path.Join(pkg, view)
}
