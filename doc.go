// Package termbridge maps and searches concepts across the NAMASTE,
// ICD-11 TM2, ICD-11 biomedicine, SNOMED CT and LOINC terminologies.
//
// An Engine owns one data directory. Refresh loads concept feeds, embeds
// them into a new index generation and rebuilds the cross-system mapping
// cache; readers keep using the previous generation until the new one is
// published.
//
//	e, err := termbridge.Open(ctx, "./termbridge-data")
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	if _, err := e.Refresh(ctx, feed.Seed()...); err != nil {
//		return err
//	}
//	results, err := e.Mapping().FindMappings(ctx, "NAMC001", core.SystemNAMASTE)
package termbridge
