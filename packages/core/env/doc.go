// Package env holds variables and resolves {{ }} templates.
//
// It provides:
//   - Vars, an insertion-ordered variable map used for definitions and the session
//   - Store, which resolves template text in two passes (known variables first,
//     then deferred expressions through an EvalFunc)
//   - Loaders for .env files and prefixed system environment variables
package env
