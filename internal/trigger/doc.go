// Package trigger carries upload-completed events to the workflow.
//
// An UploadEvent starts one pipeline run and may be delivered more than once;
// the workflow's status check makes redelivery harmless. Events travel either
// in process (LocalEmitter wakes the workflow manager) or over Kafka
// (KafkaProducer on the API side, KafkaConsumer in the daemon).
package trigger
