// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

// workflowSpecSchema is the JSON Schema the text-based surface formats
// are checked against before semantic validation. It deliberately
// validates shape only (types, required fields, enums); name
// resolution, cycles and producer uniqueness are the resolver's and
// validator's concern.
const workflowSpecSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "jobs"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "user": {"type": "string"},
    "description": {"type": "string"},
    "jobs": {
      "type": "array",
      "items": {"$ref": "#/$defs/job"}
    },
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "path": {"type": "string"},
          "parameters": {"$ref": "#/$defs/parameters"},
          "parameter_mode": {"enum": ["product", "zip"]},
          "use_parameters": {"type": "boolean"}
        }
      }
    },
    "user_data": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "is_ephemeral": {"type": "boolean"}
        }
      }
    },
    "resource_requirements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "num_cpus": {"type": "integer", "minimum": 0},
          "num_gpus": {"type": "integer", "minimum": 0},
          "num_nodes": {"type": "integer", "minimum": 0},
          "memory": {"type": "string"},
          "runtime": {"type": "string"}
        }
      }
    },
    "slurm_schedulers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "account": {"type": "string"},
          "nodes": {"type": "integer", "minimum": 0},
          "walltime": {"type": "string"},
          "partition": {"type": "string"},
          "qos": {"type": "string"},
          "memory": {"type": "string"},
          "gres": {"type": "string"},
          "tmp": {"type": "string"},
          "extra": {"type": "string"}
        }
      }
    },
    "failure_handlers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "max_retries": {"type": "integer", "minimum": 0},
          "retry_on_return_codes": {"type": "array", "items": {"type": "integer"}}
        }
      }
    },
    "workflow_actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["trigger_type", "action_type"],
        "properties": {
          "trigger_type": {"enum": ["on_workflow_start", "on_job_complete", "on_dependency_satisfied"]},
          "action_type": {"enum": ["schedule_nodes"]},
          "required_triggers": {"type": "integer", "minimum": 0},
          "job_names": {"type": "array", "items": {"type": "string"}},
          "scheduler": {"type": "string"},
          "num_allocations": {"type": "integer", "minimum": 1},
          "allocation_mode": {"enum": ["nx1", "1xn"]}
        }
      }
    }
  },
  "$defs": {
    "parameters": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string"}
      }
    },
    "stringList": {"type": "array", "items": {"type": "string"}},
    "job": {
      "type": "object",
      "required": ["name", "command"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "command": {"type": "string", "minLength": 1},
        "invocation_script": {"type": "string"},
        "cancel_on_blocking_failure": {"type": "boolean"},
        "supports_termination": {"type": "boolean"},
        "resource_requirements": {"type": "string"},
        "scheduler": {"type": "string"},
        "failure_handler": {"type": "string"},
        "depends_on": {"$ref": "#/$defs/stringList"},
        "depends_on_regexes": {"$ref": "#/$defs/stringList"},
        "input_files": {"$ref": "#/$defs/stringList"},
        "input_files_regexes": {"$ref": "#/$defs/stringList"},
        "output_files": {"$ref": "#/$defs/stringList"},
        "output_files_regexes": {"$ref": "#/$defs/stringList"},
        "input_user_data": {"$ref": "#/$defs/stringList"},
        "input_user_data_regexes": {"$ref": "#/$defs/stringList"},
        "output_user_data": {"$ref": "#/$defs/stringList"},
        "output_user_data_regexes": {"$ref": "#/$defs/stringList"},
        "parameters": {"$ref": "#/$defs/parameters"},
        "parameter_mode": {"enum": ["product", "zip"]},
        "use_parameters": {"type": "boolean"}
      }
    }
  }
}`
