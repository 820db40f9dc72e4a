package config

type WorkerKeyStruct struct {
	ArchiveAttemptsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ArchiveAttemptsQueue: "archive_attempts_queue",
}
