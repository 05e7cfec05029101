/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package expr

import "fmt"
import "time"
import "errors"
import "net/http"
import "encoding/json"
import "github.com/gorilla/websocket"

// The live evaluation service. POST /eval compiles and evaluates once;
// GET /ws upgrades to a websocket session that owns a private evaluator, so
// a client can bind variables, assign an expression and re-evaluate as its
// values change.

type evalRequest struct {
	Expression string             `json:"expression"`
	Variables  map[string]float64 `json:"variables"`
}

type errorJSON struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

type evalResponse struct {
	Result *float64   `json:"result,omitempty"`
	Error  *errorJSON `json:"error,omitempty"`
}

func toErrorJSON(err error) *errorJSON {
	var e *Error
	if errors.As(err, &e) {
		return &errorJSON{Kind: e.Kind.String(), Message: e.Message, Position: e.Position}
	}
	return &errorJSON{Kind: "Error", Message: err.Error()}
}

// HTTPServe opens the evaluation service on the given port. Like the rest of
// the evaluator API it returns immediately; the server runs in background.
func HTTPServe(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/eval", handleEval)
	mux.HandleFunc("/ws", handleWS)
	server := &http.Server{
		Addr:           fmt.Sprintf(":%v", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go server.ListenAndServe()
}

func handleEval(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("Content-Type", "application/json")
	var in evalRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		res.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(res).Encode(evalResponse{Error: &errorJSON{Kind: "BadRequest", Message: err.Error()}})
		return
	}
	ev := NewEvaluator()
	defer ev.Close()
	for name, value := range in.Variables {
		cell := new(float64)
		*cell = value
		if !ev.Bind(cell, name) {
			res.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(res).Encode(evalResponse{Error: &errorJSON{
				Kind: BindNameConflict.String(), Message: "cannot bind " + name}})
			return
		}
	}
	if err := ev.AssignExpression(in.Expression); err != nil {
		res.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(res).Encode(evalResponse{Error: toErrorJSON(err)})
		return
	}
	v := ev.Evaluate()
	json.NewEncoder(res).Encode(evalResponse{Result: &v})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsCommand struct {
	Op         string  `json:"op"` // bind | set | unbind | assign | eval
	Name       string  `json:"name,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Expression string  `json:"expression,omitempty"`
}

type wsReply struct {
	Ok     bool       `json:"ok"`
	Result *float64   `json:"result,omitempty"`
	Error  *errorJSON `json:"error,omitempty"`
}

func handleWS(res http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(res, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	ev := NewEvaluator()
	defer ev.Close()
	cells := make(map[string]*float64)

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		var reply wsReply
		switch cmd.Op {
		case "bind":
			cell := new(float64)
			*cell = cmd.Value
			if ev.Bind(cell, cmd.Name) {
				cells[cmd.Name] = cell
				reply.Ok = true
			} else {
				reply.Error = &errorJSON{Kind: BindNameConflict.String(),
					Message: "cannot bind " + cmd.Name}
			}
		case "set":
			if cell, ok := cells[cmd.Name]; ok {
				*cell = cmd.Value
				reply.Ok = true
			} else {
				reply.Error = &errorJSON{Kind: UnbindUnknown.String(),
					Message: "no variable " + cmd.Name}
			}
		case "unbind":
			if ev.Unbind(cmd.Name) {
				delete(cells, cmd.Name)
				reply.Ok = true
			} else {
				reply.Error = &errorJSON{Kind: UnbindUnknown.String(),
					Message: "no variable " + cmd.Name}
			}
		case "assign":
			if err := ev.AssignExpression(cmd.Expression); err != nil {
				reply.Error = toErrorJSON(err)
			} else {
				reply.Ok = true
			}
		case "eval":
			v := ev.Evaluate()
			reply.Ok = true
			reply.Result = &v
		default:
			reply.Error = &errorJSON{Kind: "BadRequest", Message: "unknown op " + cmd.Op}
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}
