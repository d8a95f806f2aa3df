package dbCollections

// All the DB collection names, so there's no confusion among all our code, also one place to rename
const AcquisitionsName = "acquisitions"
const SampleSetupsName = "sampleSetups"
const TransformPresetsName = "transformPresets"
