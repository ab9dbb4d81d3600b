// Package domain models monthly ERA5 reanalysis fields and the region
// arithmetic used to cut them down to a bounding box.
//
// # Data Source
//
// Monthly files come from the public ERA5 bucket (one object per month and
// parameter, see [ArchiveKey.ObjectKey]) or from the Climate Data Store job
// API. The bucket copies are global 0.25° grids:
//
//	lat:  90 .. -90 (descending, 721 points)
//	lon:  0 .. 359.75 (ascending, 1440 points)
//	time: hourly, first dimension of every data variable
//
// # Longitude Conventions
//
// The archive reports longitude in the [0,360) source domain. Regions are
// registered in the [-180,180) convention so a box west of Greenwich can be
// written with negative bounds:
//
//	NorthAtlantic: lon -60 .. 25  ->  source 300..360 and 0..25
//
// A box whose translated bounds cross the 0°/360° seam is selected as the
// union of two source intervals, see [Region.SourceIntervals]. Without the
// union the points between 0° and the eastern bound are lost.
//
// After cropping, longitude labels are folded with [WrapLongitude]. The fold
// is not monotonic (300 becomes -60 while 25 stays 25), so both axes are
// re-sorted on a second pass over a temporary file.
//
// # File Names
//
// Every name is derived from the (year, month, parameter) key:
//
//	cds/2000/01/data/sea_surface_temperature.nc   remote object
//	200001_sea_surface_temperature.nc             raw cache entry
//	tmp_sea_surface_temperature_2000-01.nc        relabelled, unsorted
//	sea_surface_temperature_2000-01.nc            final artifact
package domain
