/*
Package pathmap maps live container paths to stable logical paths.

A logical path is "/" + volume name + "/" + relative path and is the sole
external identity of a file: document ids, state-store keys and index fields
are all derived from it. Container paths are ephemeral and used only for I/O.
*/
package pathmap
