package linkmon

// Event topics published by the linkmon module. Link topics carry a
// models.LinkEvent; the snapshot topic carries a *models.StatusSnapshot.
const (
	TopicLinkDown          = "linkmon.link.down"
	TopicLinkConfirmed     = "linkmon.link.confirmed"
	TopicLinkRecovered     = "linkmon.link.recovered"
	TopicSnapshotPublished = "linkmon.snapshot.published"
)
