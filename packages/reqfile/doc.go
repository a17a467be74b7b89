// Package reqfile loads YAML request collections for recurl.
//
// A collection holds named requests with shared defaults, variables,
// captures and expectations. It supports:
//   - Request definitions (method, URL, headers, body, form fields)
//   - Shared defaults merged into every request
//   - Variable interpolation using {{variable}} syntax
//   - Built-in template functions (uuid, timestamp, random, etc.)
//   - Environment lookups with {{$VAR}}
//   - Capturing response values for request chaining
package reqfile
