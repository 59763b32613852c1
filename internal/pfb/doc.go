// Package pfb reads and writes ParFlow Binary grid files.
//
// A file is a big-endian header (origin, extents, spacing, subgrid count)
// followed by one or more subgrids, each with its own index header and
// x-fastest float64 data. A single-subgrid file is the plain layout; a file
// partitioned by a P×Q×R process topology is the distributed layout and is
// accompanied by a .dist sidecar listing subgrid byte offsets.
//
// No simulator or plotting code lives here.
package pfb
