package config

// WorkerKeyStruct names the Redis lists shared by the server and its workers.
type WorkerKeyStruct struct {
	// PersistAnswersQueue carries model.AutosaveJob payloads from the
	// websocket handler to the autosave worker.
	PersistAnswersQueue string
	// PersistAnswersDeadLetter keeps jobs the worker could never apply.
	PersistAnswersDeadLetter string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:      "persist_answers_queue",
	PersistAnswersDeadLetter: "persist_answers_dead",
}
