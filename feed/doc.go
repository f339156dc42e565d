// Package feed supplies raw concept records to the engine.
//
// A Provider fetches the records of one terminology system. Providers read
// FHIR CodeSystem resources (CodeSystemFile), plain record lists in YAML or
// JSON (RecordsFile), the SNOMED CT Snowstorm browser API (Snowstorm) or
// fixed in-memory data (Static, Seed). FetchAll runs providers concurrently.
package feed
