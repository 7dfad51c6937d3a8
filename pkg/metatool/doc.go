// Package metatool implements the privileged tool layer that lets a
// running machine inspect and rewrite its own definition: snapshotting,
// validated graph mutation, and runtime synthesis of new tools from
// agent-supplied specifications.
package metatool
