// Package yara implements the rule-language intelligence behind the server:
// cursor-to-symbol resolution, rule-scope detection, occurrence scanning,
// the module capability schema used for completion, and the compiler and
// formatter collaborators.
//
// Symbol resolution is deliberately token- and pattern-based rather than
// grammar-based. It is accurate for well-formatted, non-nested rule
// declarations; pathological or minified rule text is out of scope.
package yara
