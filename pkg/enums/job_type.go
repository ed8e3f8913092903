package enums

// JobType names the asynchronous operations dispatched through Pub/Sub.
// Every job carries exactly one identifier; results are only observable
// through subsequent state reads.
type JobType string

const (
	JobSyncVersion      JobType = "sync-version"
	JobClearBuild       JobType = "clear-build"
	JobCompleteBuild    JobType = "complete-build"
	JobCancelBuild      JobType = "cancel-build"
	JobCompleteOrder    JobType = "complete-order"
	JobEnrichVendorPart JobType = "enrich-vendor-part"
)

func (j JobType) IsValid() bool {
	switch j {
	case JobSyncVersion, JobClearBuild, JobCompleteBuild, JobCancelBuild,
		JobCompleteOrder, JobEnrichVendorPart:
		return true
	default:
		return false
	}
}
