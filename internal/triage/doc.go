// Package triage is the support-ticket triage pipeline. A Service walks each
// ticket through a fixed sequence of stages: text analysis, context
// retrieval, priority scoring, routing decision, workflow execution and
// audit logging. Storage and search sit behind the Backend interface, with
// implementations in the memstore, pgstore and esstore subpackages.
//
// Triage never fails once a ticket is in hand. Backend faults degrade to
// neutral defaults and are reported through Hooks and the logger.
package triage
