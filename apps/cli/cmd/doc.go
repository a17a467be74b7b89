// Package cmd implements the recurl CLI commands using Cobra.
//
// Available commands:
//   - get/post/put/patch/delete: Send a single request
//   - run: Execute request collections with captures and expectations
//   - bench: Generate load against a URL or a collection
//   - history: Inspect requests recorded with --save
//   - validate: Check collection syntax without executing
//   - list: Display the requests defined in collections
//   - explain: Print the command a request would run
//   - init: Create an example collection
//   - version: Show recurl version information
//
// Commands exit 0 on success, 1 when a request, expectation or threshold
// fails, 2 on usage errors, 3 on file problems and 4 on internal faults.
package cmd
