// Package mediatypes provides shared type definitions and utilities for video
// file handling across the compression service.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no external dependencies beyond
// the standard library.
//
// # Input Validation
//
// The extension map VideoExtensions is the upload/fetch allowlist:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	if !mediatypes.IsVideoFile(ext) {
//	    // reject the upload
//	}
//
// # Containers
//
// Output container formats are modeled by the Container type:
//
//	mediatypes.ContainerMP4  // .mp4, video/mp4
//	mediatypes.ContainerWebM // .webm, video/webm
//	mediatypes.ContainerMKV  // .mkv, video/x-matroska
//	mediatypes.ContainerMOV  // .mov, video/quicktime
//
// and carry their own extension and MIME type:
//
//	c := mediatypes.ContainerMP4
//	name := "output" + c.Ext()         // "output.mp4"
//	w.Header().Set("Content-Type", c.MimeType())
//
// # MIME Types
//
// Use GetMimeType to get the appropriate MIME type for HTTP responses:
//
//	mimeType := mediatypes.GetMimeType(".mkv") // "video/x-matroska"
package mediatypes
