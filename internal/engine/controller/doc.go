// Package controller implements the edit controller: exclusive owner of one
// model instance, mapping edit types to (apply, submit) handler pairs.
//
// PublishEdit performs the optimistic workflow: the apply handler mutates
// the model immediately and produces the reverse edits, the submit handler
// then confirms the edit remotely through the controller's sequential queue,
// and on remote failure the mutation is rolled back by applying the reverses
// locally. Successful submissions advance the model revision and hand the
// reverses to the configured recorder.
//
// Controllers compose into a tree: child controllers are created lazily per
// (model type, model id) pair and own their own queues, so sibling models
// submit concurrently while edits for a single model stay strictly ordered.
package controller
