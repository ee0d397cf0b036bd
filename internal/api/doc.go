// Package api is the client for the notebook backend's HTTP endpoints.
//
// Endpoints:
//   - GET    /status/jobs/{user_id}                 jobs for a user
//   - GET    /status/jobs/{user_id}/{request_id}    one job
//   - GET    /status/notebook/jobs/{notebook_id}    jobs for a notebook
//   - GET    /notebook_job_schedule/{notebook_id}   schedules
//   - POST   /notebook_job_schedule/{notebook_id}   create schedule
//   - PUT    /notebook_job_schedule                 update schedule
//   - DELETE /notebook_job_schedule/{schedule_id}   delete schedule
//   - GET    /connectors/{user_id}/{notebook_id}[/{type}]
//   - GET    /notebook_details/{notebook_id}
//
// Some endpoints wrap their reply as {"statusCode": N, "body": ...}, with
// body either a JSON value or a JSON-encoded string. Replies are unwrapped
// before decoding and an embedded status >= 400 becomes an *APIError.
package api
