// Package lang implements parameter extraction and compilation for Python
// sources annotated with pyparam markers.
//
// A source file declares tunable values inline:
//
//	timeout = PyParam(30, 'int', 'net', 'request timeout in seconds')
//
// [Extract] scans an entry file, follows its IncludeModule, IncludeSource,
// DeriveModule, and ReplaceModule markers, and assembles every declared
// parameter into a [ConfigTree] addressed by scope path. The tree marshals
// to YAML for review and editing, and edited values flow back in as
// [Overrides].
//
// [Compile] re-emits the entry file with each marker call replaced by its
// effective literal value, included modules encapsulated as classes, and
// included sources spliced inline. The emitted text contains no pyparam
// vocabulary and runs without the pyparam markers defined.
package lang
