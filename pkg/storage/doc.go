// Package storage persists what the crawler finds.
//
// MediaStore writes one file per post attachment and treats an existing
// file at the target path as already stored, which makes reruns safe.
// Files are written to a temporary sibling and renamed into place. Keys
// whose ids would name a path outside the data directory are refused.
//
// HyperlinkLog appends discovered links to a single text file, one
// "<thread_id>-<post_id>: <url>" line each. A line that cannot be written
// is logged and the rest of the batch continues.
package storage
