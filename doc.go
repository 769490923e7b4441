/*
Package remix is an audio effects engine: it auditions a source through a
reconfigurable effects chain and exports the source as WAV file.

Concept

The engine is built around the idea that the signal processing has three
stages:

    Pump - the origin of signal;
    Processor - the manipulator of the signal;
    Sink - the destination of signal.

Stages are connected with pipes, see pipe package. Two pipes exist in the
engine. The live one is running while engine is open:

    mixer.Mixer -> graph.Graph -> device sink

Every playback session is a voice of the mixer, so sessions that overlap
share the same gain and insert path. The effect graph keeps a single insert
slot:

    Source -> Gain -> [Delay | Filter | Convolver] -> Output

The export one is created for every render and doesn't depend on the live
state:

    render pump -> pass-through gain -> asset.Asset

Rendered samples are encoded into 16-bit PCM WAV with wav.Encode.

Commands

Engine is controlled with commands, see Command and Verb. The dispatch
package applies commands one at a time and reports a status line for each of
them. Free text is mapped to commands by the intent package.

Errors

Components return typed errors: FetchError, DecodeError, RenderTimeoutError
and ErrEngineNotReady. Dispatcher wraps any of them into
EffectApplicationError and never propagates it further.
*/
package remix
