// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Helpers cover fixture files on disk or on an afero file system
// (MustWriteFile, WriteFiles), schema servers (NewJSONServer) and the
// working directory (MustChdir).
package testutil
